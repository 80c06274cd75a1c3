package engine

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/assets/loaders"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// Write prints the access matrix, the per-subpass references and the
// dependency list of the report.
func (r *Report) Write(w io.Writer) error {
	pass := r.Pass
	plan := r.Plan

	status := "planned"
	if r.Compiled {
		status = "compiled"
	}
	fmt.Fprintf(w, "%s %s\n\n", titleStyle.Render("pass "+pass.Name), mutedStyle.Render(fmt.Sprintf("(%s, %s in %s)", r.Path, status, r.Elapsed)))

	fmt.Fprintln(w, headingStyle.Render("attachments"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tname\tformat\t%s\tfinal\tusage\n", strings.Join(pass.SubpassNames, "\t"))
	capabilities := plan.AttachmentCapabilities()
	for a, name := range pass.AttachmentNames {
		cells := make([]string, plan.Matrix.SubpassCount())
		for s := range cells {
			cells[s] = accessCell(plan.Matrix.At(a, s))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", a, name, loaders.FormatName(plan.Formats[a]), strings.Join(cells, "\t"), vulkan.LayoutName(plan.FinalLayouts[a]), capabilities[a])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", headingStyle.Render("subpasses"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tname\tcolor\tinput\tdepth/stencil\tpreserve")
	for s, refs := range plan.Subpasses {
		depth := "-"
		if refs.DepthStencil != nil {
			depth = r.refName(*refs.DepthStencil)
		}
		preserve := make([]string, len(refs.Preserve))
		for i, a := range refs.Preserve {
			preserve[i] = pass.AttachmentNames[a]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s, pass.SubpassNames[s], r.refNames(refs.Color), r.refNames(refs.Input), depth, listOrDash(preserve))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", headingStyle.Render("dependencies"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "src\tdst\tsrc stages\tdst stages\tsrc access\tdst access\tby region")
	for _, dep := range plan.Dependencies {
		byRegion := "no"
		if dep.Flags&vk.DependencyFlags(vk.DependencyByRegionBit) != 0 {
			byRegion = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.subpassName(dep.Src), r.subpassName(dep.Dst),
			loaders.StageNames(dep.SrcStageMask), loaders.StageNames(dep.DstStageMask),
			loaders.AccessNames(dep.SrcAccessMask), loaders.AccessNames(dep.DstAccessMask),
			byRegion)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func accessCell(kind vulkan.AccessKind) string {
	if kind == vulkan.AccessUnused {
		return "-"
	}
	return kind.String()
}

func (r *Report) refName(ref vulkan.AttachmentRef) string {
	return fmt.Sprintf("%s(%s)", r.Pass.AttachmentNames[ref.Attachment], vulkan.LayoutName(ref.Layout))
}

func (r *Report) refNames(refs []vulkan.AttachmentRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = r.refName(ref)
	}
	return listOrDash(names)
}

func (r *Report) subpassName(index uint32) string {
	if index == vk.SubpassExternal {
		return "external"
	}
	return r.Pass.SubpassNames[index]
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
