package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/cropguard/internal/errors"
)

const bytesPerGiB = 1 << 30

// HostInfo collects host, memory, CPU and disk figures. Every lookup that
// succeeds contributes a line; the returned error joins the failures.
func HostInfo(ctx context.Context, diskPath string) (string, error) {
	if diskPath == "" {
		diskPath = "/"
	}
	var lines []string
	var errs []error

	if h, err := host.InfoWithContext(ctx); err == nil {
		lines = append(lines,
			fmt.Sprintf("🖥️ Host: %s (%s %s, %s)", h.Hostname, h.Platform, h.PlatformVersion, h.KernelArch),
			fmt.Sprintf("⏱️ Uptime: %s", (time.Duration(h.Uptime)*time.Second).String()))
	} else {
		errs = append(errs, err)
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		lines = append(lines, fmt.Sprintf("⚙️ CPU: %.1f%%", pct[0]))
	} else if err != nil {
		errs = append(errs, err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		lines = append(lines, fmt.Sprintf("🧠 Memory: %.1f%% of %.1f GiB",
			vm.UsedPercent, float64(vm.Total)/bytesPerGiB))
	} else {
		errs = append(errs, err)
	}

	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		lines = append(lines, fmt.Sprintf("💾 Disk: %.1f%% used, %.1f GiB free",
			du.UsedPercent, float64(du.Free)/bytesPerGiB))
	} else {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return strings.Join(lines, "\n"), errors.New(err).
			Component("bot").
			Category(errors.CategorySystem).
			Context("operation", "host_info").
			Build()
	}
	return strings.Join(lines, "\n"), nil
}
