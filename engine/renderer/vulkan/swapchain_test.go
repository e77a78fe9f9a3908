package vulkan

import (
	"io"
	"os"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// VK_FORMAT_A2B10G10R10_UNORM_PACK32, absent from the fallback list.
const formatA2B10G10R10 = vk.Format(64)

func testSupport() VulkanSwapchainSupportInfo {
	return VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:       2,
			MaxImageCount:       8,
			CurrentExtent:       vk.Extent2D{Width: extentAnySize, Height: extentAnySize},
			MinImageExtent:      vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:      vk.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers: 1,
			SupportedUsageFlags: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

func mustConfig(t *testing.T, desired uint32, opts ...SwapchainOption) SwapchainConfig {
	t.Helper()
	cfg, err := NewSwapchainConfig(desired, opts...)
	require.NoError(t, err)
	return cfg
}

func TestNewSwapchainConfig(t *testing.T) {
	cfg := mustConfig(t, 3)
	assert.Equal(t, uint32(3), cfg.DesiredImageCount())
	assert.Equal(t, uint32(1), cfg.ArrayLayers())
	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit), cfg.ImageUsage())
	assert.Equal(t, vk.PresentModeMailbox, cfg.PresentModePreference())

	cfg = mustConfig(t, 2,
		WithPresentModePreference(vk.PresentModeFifo),
		WithPreferredFormat(vk.FormatR8g8b8a8Unorm, vk.ColorSpaceSrgbNonlinear),
		WithArrayLayers(2),
		WithImageUsage(vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)),
	)
	assert.Equal(t, vk.PresentModeFifo, cfg.PresentModePreference())
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, cfg.PreferredFormat().Format)
	assert.Equal(t, uint32(2), cfg.ArrayLayers())

	vsync := cfg.WithPresentMode(vk.PresentModeMailbox)
	assert.Equal(t, vk.PresentModeMailbox, vsync.PresentModePreference())
	assert.Equal(t, vk.PresentModeFifo, cfg.PresentModePreference())
}

func TestNewSwapchainConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		desired uint32
		opts    []SwapchainOption
	}{
		{"zero images", 0, nil},
		{"zero layers", 2, []SwapchainOption{WithArrayLayers(0)}},
		{"no usage", 2, []SwapchainOption{WithImageUsage(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSwapchainConfig(tt.desired, tt.opts...)
			assert.ErrorIs(t, err, core.ErrResourceCreation)
		})
	}
}

func TestNegotiateSwapchain(t *testing.T) {
	params, err := negotiateSwapchain(testSupport(), mustConfig(t, 3), 1280, 720)
	require.NoError(t, err)

	assert.Equal(t, vk.FormatB8g8r8a8Srgb, params.Format.Format)
	assert.Equal(t, vk.PresentModeMailbox, params.PresentMode)
	assert.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, params.Extent)
	assert.Equal(t, uint32(3), params.ImageCount)
}

func TestNegotiateSwapchainIsStable(t *testing.T) {
	support := testSupport()
	cfg := mustConfig(t, 3)

	first, err := negotiateSwapchain(support, cfg, 800, 600)
	require.NoError(t, err)
	second, err := negotiateSwapchain(support, cfg, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	resized, err := negotiateSwapchain(support, cfg, 1024, 768)
	require.NoError(t, err)
	assert.Equal(t, first.Format, resized.Format)
	assert.Equal(t, first.PresentMode, resized.PresentMode)
	assert.Equal(t, first.ImageCount, resized.ImageCount)
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, resized.Extent)
}

func TestChooseExtent(t *testing.T) {
	caps := testSupport().Capabilities

	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 1}, chooseExtent(caps, 10000, 0))

	caps.CurrentExtent = vk.Extent2D{Width: 640, Height: 480}
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, chooseExtent(caps, 1280, 720))
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		desired  uint32
		want     uint32
	}{
		{"within range", 2, 8, 3, 3},
		{"below minimum", 3, 8, 1, 3},
		{"above maximum", 2, 3, 5, 3},
		{"unbounded", 2, 0, 16, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := vk.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			assert.Equal(t, tt.want, chooseImageCount(caps, tt.desired))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeMailbox))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeFifo))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo}, vk.PresentModeMailbox))
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	t.Run("empty", func(t *testing.T) {
		_, err := chooseSurfaceFormat(nil, preferred)
		assert.ErrorIs(t, err, core.ErrResourceCreation)
	})
	t.Run("undefined means any", func(t *testing.T) {
		f, err := chooseSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatUndefined}}, preferred)
		require.NoError(t, err)
		assert.Equal(t, preferred, f)
	})
	t.Run("preferred", func(t *testing.T) {
		f, err := chooseSurfaceFormat(testSupport().Formats, preferred)
		require.NoError(t, err)
		assert.Equal(t, preferred, f)
	})
	t.Run("fallback list", func(t *testing.T) {
		formats := []vk.SurfaceFormat{
			{Format: formatA2B10G10R10, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		}
		f, err := chooseSurfaceFormat(formats, preferred)
		require.NoError(t, err)
		assert.Equal(t, vk.FormatR8g8b8a8Srgb, f.Format)
	})
	t.Run("first as last resort", func(t *testing.T) {
		formats := []vk.SurfaceFormat{
			{Format: formatA2B10G10R10, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		}
		f, err := chooseSurfaceFormat(formats, preferred)
		require.NoError(t, err)
		assert.Equal(t, formatA2B10G10R10, f.Format)
	})
}

func TestNegotiateSwapchainRejectsUnsupported(t *testing.T) {
	support := testSupport()

	_, err := negotiateSwapchain(support, mustConfig(t, 3, WithArrayLayers(2)), 800, 600)
	assert.ErrorIs(t, err, core.ErrResourceCreation)

	_, err = negotiateSwapchain(support, mustConfig(t, 3, WithImageUsage(vk.ImageUsageFlags(vk.ImageUsageStorageBit))), 800, 600)
	assert.ErrorIs(t, err, core.ErrResourceCreation)

	support.Formats = nil
	_, err = negotiateSwapchain(support, mustConfig(t, 3), 800, 600)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func TestSurfaceStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		result vk.Result
		fatal  error
		want   frame.SurfaceStatus
	}{
		{"acquire success", vk.Success, core.ErrSurfaceAcquire, frame.SurfaceOptimal},
		{"acquire suboptimal", vk.Suboptimal, core.ErrSurfaceAcquire, frame.SurfaceSuboptimal},
		{"acquire out of date", vk.ErrorOutOfDate, core.ErrSurfaceAcquire, frame.SurfaceOutOfDate},
		{"present success", vk.Success, core.ErrPresent, frame.SurfaceOptimal},
		{"present suboptimal", vk.Suboptimal, core.ErrPresent, frame.SurfaceSuboptimal},
		{"present out of date", vk.ErrorOutOfDate, core.ErrPresent, frame.SurfaceOutOfDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := surfaceStatusFor("op", tt.result, tt.fatal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestSurfaceStatusForFatal(t *testing.T) {
	for _, fatal := range []error{core.ErrSurfaceAcquire, core.ErrPresent} {
		for _, result := range []vk.Result{vk.ErrorSurfaceLost, vk.ErrorDeviceLost, vk.Timeout} {
			_, err := surfaceStatusFor("vkQueuePresentKHR", result, fatal)
			require.Error(t, err)
			assert.ErrorIs(t, err, fatal)
			assert.NotErrorIs(t, err, core.ErrSurfaceInvalidated)
			assert.Contains(t, err.Error(), "vkQueuePresentKHR")
		}
	}
}
