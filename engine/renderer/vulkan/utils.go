package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

// VulkanResultString returns the name of a result code and, when getExtended
// is set, a short description of it.
func VulkanResultString(result vk.Result, getExtended bool) string {
	name, description := resultText(result)
	if !getExtended {
		return name
	}
	return name + " " + description
}

func resultText(result vk.Result) (string, string) {
	// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
	switch result {
	// Success Codes
	case vk.Success:
		return "VK_SUCCESS", "Command successfully completed"
	case vk.NotReady:
		return "VK_NOT_READY", "A fence or query has not yet completed"
	case vk.Timeout:
		return "VK_TIMEOUT", "A wait operation has not completed in the specified time"
	case vk.Incomplete:
		return "VK_INCOMPLETE", "A return array was too small for the result"
	case vk.PipelineCompileRequired:
		return "VK_PIPELINE_COMPILE_REQUIRED", "A pipeline creation would have required compilation"

	// Error codes
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed."
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver."
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."
	case vk.ErrorInvalidShaderNv:
		return "VK_ERROR_INVALID_SHADER_NV", "One or more shaders failed to compile or link."
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN", "An unknown error has occurred."
	}
	return "VK_RESULT_UNKNOWN", "The result code is not recognized."
}

// VulkanResultIsSuccess reports whether result is one of the non-error codes.
// Error codes are negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// resultError converts a failed result of call into a native creation error.
func resultError(call string, result vk.Result) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	return core.NativeErrorf("%s failed with %s", call, VulkanResultString(result, true))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// cString trims a fixed-size, NUL terminated name returned by the driver.
func cString(raw []byte) string {
	for i, b := range raw {
		if b == endChar {
			return string(raw[:i])
		}
	}
	return string(raw)
}
