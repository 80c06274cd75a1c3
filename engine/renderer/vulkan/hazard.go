package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

// AccessMatrix records how every subpass touches every attachment. It is
// attachment-major: the cells of one attachment are contiguous.
type AccessMatrix struct {
	attachments int
	subpasses   int
	cells       []AccessKind
}

func newAccessMatrix(attachments, subpasses int) *AccessMatrix {
	return &AccessMatrix{
		attachments: attachments,
		subpasses:   subpasses,
		cells:       make([]AccessKind, attachments*subpasses),
	}
}

func (m *AccessMatrix) AttachmentCount() int { return m.attachments }

func (m *AccessMatrix) SubpassCount() int { return m.subpasses }

// At returns the access of attachment in subpass.
func (m *AccessMatrix) At(attachment, subpass int) AccessKind {
	return m.cells[attachment*m.subpasses+subpass]
}

func (m *AccessMatrix) set(attachment, subpass int, kind AccessKind) {
	m.cells[attachment*m.subpasses+subpass] = kind
}

// Rows returns a copy of the matrix, one row per attachment.
func (m *AccessMatrix) Rows() [][]AccessKind {
	rows := make([][]AccessKind, m.attachments)
	for i := range rows {
		rows[i] = append([]AccessKind(nil), m.cells[i*m.subpasses:(i+1)*m.subpasses]...)
	}
	return rows
}

// AttachmentRef is an attachment index together with the layout it has
// while a subpass uses it.
type AttachmentRef struct {
	Attachment uint32
	Layout     vk.ImageLayout
}

func (r AttachmentRef) vulkan() vk.AttachmentReference {
	return vk.AttachmentReference{
		Attachment: r.Attachment,
		Layout:     r.Layout,
	}
}

// SubpassAttachments is the resolved attachment usage of one subpass.
type SubpassAttachments struct {
	Color        []AttachmentRef
	Input        []AttachmentRef
	DepthStencil *AttachmentRef
	// Attachments the subpass does not reference but must keep intact for a
	// later input read.
	Preserve []uint32
}

// AnalyzeAttachments builds the access matrix of the subpasses over
// attachmentCount attachments and resolves the layout of every reference and
// the preserve list of every subpass.
func AnalyzeAttachments(attachmentCount int, subpasses []SubpassDescription) (*AccessMatrix, []SubpassAttachments, error) {
	if attachmentCount < 0 {
		return nil, nil, core.ConfigErrorf("attachment count must not be negative, got %d", attachmentCount)
	}
	if err := validateSubpasses(attachmentCount, subpasses); err != nil {
		return nil, nil, err
	}

	matrix := newAccessMatrix(attachmentCount, len(subpasses))
	resolved := make([]SubpassAttachments, len(subpasses))

	for s, subpass := range subpasses {
		for _, i := range subpass.ColorAttachments {
			matrix.set(int(i), s, AccessColorWrite)
			resolved[s].Color = append(resolved[s].Color, AttachmentRef{
				Attachment: i,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
		for _, i := range subpass.DepthStencilAttachments {
			matrix.set(int(i), s, AccessDepthStencilWrite)
			resolved[s].DepthStencil = &AttachmentRef{
				Attachment: i,
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
		for _, i := range subpass.InputAttachments {
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if lastWrite(matrix, int(i), s) == AccessDepthStencilWrite {
				layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			matrix.set(int(i), s, AccessInputRead)
			resolved[s].Input = append(resolved[s].Input, AttachmentRef{
				Attachment: i,
				Layout:     layout,
			})
		}
	}

	for i := 0; i < attachmentCount; i++ {
		readPending := false
		for s := len(subpasses) - 1; s >= 0; s-- {
			switch kind := matrix.At(i, s); {
			case kind == AccessInputRead:
				readPending = true
			case kind.IsWrite():
				readPending = false
			case readPending:
				resolved[s].Preserve = append(resolved[s].Preserve, uint32(i))
			}
		}
	}

	return matrix, resolved, nil
}

// lastWrite returns the most recent write to attachment in the subpasses
// before subpass, or AccessUnused when there is none.
func lastWrite(matrix *AccessMatrix, attachment, subpass int) AccessKind {
	for s := subpass - 1; s >= 0; s-- {
		if kind := matrix.At(attachment, s); kind.IsWrite() {
			return kind
		}
	}
	return AccessUnused
}

func validateSubpasses(attachmentCount int, subpasses []SubpassDescription) error {
	for s, subpass := range subpasses {
		if len(subpass.DepthStencilAttachments) > 1 {
			return core.ConfigErrorf("subpass %d declares %d depth/stencil attachments, at most one is allowed",
				s, len(subpass.DepthStencilAttachments))
		}
		lists := []struct {
			role    string
			indices []uint32
		}{
			{"color", subpass.ColorAttachments},
			{"depth/stencil", subpass.DepthStencilAttachments},
			{"input", subpass.InputAttachments},
		}
		for _, list := range lists {
			for _, i := range list.indices {
				if int64(i) >= int64(attachmentCount) {
					return core.ConfigErrorf("subpass %d references %s attachment %d, but only %d attachments exist",
						s, list.role, i, attachmentCount)
				}
			}
		}
	}
	return nil
}
