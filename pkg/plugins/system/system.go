// Package system answers questions about the running bot: uptime, clock
// and host statistics.
package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/permissions"
)

type Plugin struct {
	now    func() time.Time
	uptime func() time.Duration
}

func New() *Plugin {
	return &Plugin{
		now:    time.Now,
		uptime: bot.Uptime,
	}
}

func (p *Plugin) Name() string { return "system" }

func (p *Plugin) UpdateHandlers() []bot.UpdateHandler { return nil }

func (p *Plugin) Commands() map[string]bot.CommandMetadata {
	return map[string]bot.CommandMetadata{
		"uptime": {
			Permission:  permissions.User,
			Description: "Show bot uptime since the last restart",
			Handler:     p.onUptime,
		},
		"datetime": {
			Permission:  permissions.User,
			Description: "Show the current date and time",
			Handler:     p.onDatetime,
		},
		"sysinfo": {
			Permission:  permissions.Admin,
			Description: "Show host and runtime information",
			Handler:     p.onSysinfo,
		},
	}
}

// FormatDuration renders d as "1h 2m 3s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func (p *Plugin) onUptime(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	_, err := tr.SendMessage(ctx, bot.Reply(msg, "Uptime: "+FormatDuration(p.uptime())))
	return err
}

func (p *Plugin) onDatetime(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	now := p.now()
	utc := now.UTC()
	text := fmt.Sprintf("Date & time\n\nUTC: %s\nLocal: %s\nUnix: %d\nISO 8601: %s",
		utc.Format("2006-01-02 15:04:05 UTC"),
		now.Local().Format("2006-01-02 15:04:05 MST"),
		utc.Unix(),
		utc.Format(time.RFC3339),
	)
	_, err := tr.SendMessage(ctx, bot.Reply(msg, text))
	return err
}

// Stats is a point-in-time view of the process and its host.
type Stats struct {
	Hostname   string
	OS         string
	Arch       string
	GoVersion  string
	CPUs       int
	Goroutines int
	HeapMB     uint64
	SysMB      uint64
	NumGC      uint32
	PID        int
	Uptime     time.Duration
}

func ReadStats(uptime time.Duration) Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Stats{
		Hostname:   host,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		GoVersion:  runtime.Version(),
		CPUs:       runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     mem.HeapAlloc / 1024 / 1024,
		SysMB:      mem.Sys / 1024 / 1024,
		NumGC:      mem.NumGC,
		PID:        os.Getpid(),
		Uptime:     uptime,
	}
}

func (s Stats) String() string {
	var b strings.Builder
	b.WriteString("System information\n\n")
	fmt.Fprintf(&b, "Host: %s (%s/%s)\n", s.Hostname, s.OS, s.Arch)
	fmt.Fprintf(&b, "CPUs: %d\n", s.CPUs)
	fmt.Fprintf(&b, "Go: %s\n", s.GoVersion)
	fmt.Fprintf(&b, "Goroutines: %d\n", s.Goroutines)
	fmt.Fprintf(&b, "Heap: %d MB\n", s.HeapMB)
	fmt.Fprintf(&b, "Reserved: %d MB\n", s.SysMB)
	fmt.Fprintf(&b, "GC cycles: %d\n", s.NumGC)
	fmt.Fprintf(&b, "PID: %d\n", s.PID)
	fmt.Fprintf(&b, "Uptime: %s", FormatDuration(s.Uptime))
	return b.String()
}

func (p *Plugin) onSysinfo(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	_, err := tr.SendMessage(ctx, bot.Reply(msg, ReadStats(p.uptime()).String()))
	return err
}
