package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

const (
	qGraphics = vk.QueueFlags(vk.QueueGraphicsBit)
	qCompute  = vk.QueueFlags(vk.QueueComputeBit)
	qTransfer = vk.QueueFlags(vk.QueueTransferBit)
)

func TestFindQueueFamilies(t *testing.T) {
	tests := []struct {
		name    string
		flags   []vk.QueueFlags
		present []bool
		want    VulkanPhysicalDeviceQueueFamilyInfo
	}{
		{
			name:    "single universal family",
			flags:   []vk.QueueFlags{qGraphics | qCompute | qTransfer},
			present: []bool{true},
			want:    VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0},
		},
		{
			name:    "ignores dedicated transfer family",
			flags:   []vk.QueueFlags{qGraphics | qCompute | qTransfer, qCompute | qTransfer, qTransfer},
			present: []bool{true, false, false},
			want:    VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0},
		},
		{
			name:    "prefers combined graphics and present",
			flags:   []vk.QueueFlags{qGraphics, qCompute, qGraphics | qTransfer},
			present: []bool{false, true, true},
			want:    VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 2, PresentFamilyIndex: 2},
		},
		{
			name:    "separate present family",
			flags:   []vk.QueueFlags{qGraphics, qCompute},
			present: []bool{false, true},
			want:    VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 1},
		},
		{
			name:    "no graphics",
			flags:   []vk.QueueFlags{qCompute | qTransfer},
			present: []bool{true},
			want:    VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findQueueFamilies(tt.flags, tt.present))
		})
	}
}

func TestQueueFamilyRequirements(t *testing.T) {
	req := &VulkanPhysicalDeviceRequirements{Graphics: true, Present: true}
	assert.True(t, VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0}.satisfies(req))
	assert.False(t, VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: 0}.satisfies(req))
	assert.False(t, VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: -1}.satisfies(req))
	assert.True(t, VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: 0}.satisfies(&VulkanPhysicalDeviceRequirements{Present: true}))
}
