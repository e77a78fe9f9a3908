package vulkan

import (
	"bytes"
	"io"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "VK_KHR_surface\x00", VulkanSafeString("VK_KHR_surface"))
	assert.Equal(t, "VK_KHR_surface\x00", VulkanSafeString("VK_KHR_surface\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "VK_LAYER_X")
	assert.Equal(t, "VK_LAYER_X", cString(name[:]))
	assert.Equal(t, 10, FindFirstZeroInByteArray(name[:]))
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte("abc")))
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate))
	assert.Equal(t, "VK_SUBOPTIMAL_KHR", VulkanResultString(vk.Suboptimal))
	assert.Equal(t, "VkResult(-424242)", VulkanResultString(vk.Result(-424242)))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestResultErrorLogsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(io.Discard) })

	err := resultError("vkCreateImage 100%d", vk.ErrorOutOfDeviceMemory, core.ErrResourceCreation)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
	assert.Contains(t, buf.String(), "vkCreateImage 100%d")
	assert.NotContains(t, buf.String(), "%!d")
}
