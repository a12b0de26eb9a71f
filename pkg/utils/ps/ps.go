// Package ps samples host load for the device status endpoint.
package ps

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type CPU struct {
	Percent float64 `json:"percent"`
}

type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
	Readable    string  `json:"readable"`
}

// Process is the resource use of this program.
type Process struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpuPercent"`
	RSS        uint64  `json:"rss"`
	Threads    int32   `json:"threads"`
	Readable   string  `json:"readable"`
}

type Status struct {
	CPU     CPU     `json:"cpu"`
	Memory  Memory  `json:"memory"`
	Process Process `json:"process"`
}

func CPUStatus() (CPU, error) {
	list, err := cpu.Percent(time.Millisecond*50, false)
	if err != nil {
		return CPU{}, err
	}
	if len(list) == 0 {
		return CPU{}, nil
	}

	return CPU{
		Percent: list[0],
	}, nil
}

func MemoryStatus() (Memory, error) {
	memory, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, err
	}

	return Memory{
		Total:       memory.Total,
		Used:        memory.Used,
		UsedPercent: memory.UsedPercent,
		Readable:    humanize.Bytes(memory.Used) + " / " + humanize.Bytes(memory.Total),
	}, nil
}

func ProcessStatus(pid int32) (Process, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return Process{}, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return Process{}, err
	}
	percent, err := p.CPUPercent()
	if err != nil {
		return Process{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return Process{}, err
	}

	return Process{
		PID:        pid,
		CPUPercent: percent,
		RSS:        info.RSS,
		Threads:    threads,
		Readable:   humanize.Bytes(info.RSS),
	}, nil
}

// Sample collects host and process load. It blocks for about 50ms while CPU
// usage is measured.
func Sample(pid int32) (Status, error) {
	c, err := CPUStatus()
	if err != nil {
		return Status{}, err
	}
	m, err := MemoryStatus()
	if err != nil {
		return Status{}, err
	}
	p, err := ProcessStatus(pid)
	if err != nil {
		return Status{}, err
	}

	return Status{CPU: c, Memory: m, Process: p}, nil
}
