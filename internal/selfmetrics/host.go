package selfmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostCollector память и загрузка CPU машины, на которой крутится агент.
// Значения снимаются в момент scrape.
type HostCollector struct {
	totalMemory *prometheus.Desc
	freeMemory  *prometheus.Desc
	cpuUsage    *prometheus.Desc
}

func NewHostCollector() *HostCollector {
	return &HostCollector{
		totalMemory: prometheus.NewDesc("analytics_host_memory_total_bytes", "Total host memory.", nil, nil),
		freeMemory:  prometheus.NewDesc("analytics_host_memory_free_bytes", "Free host memory.", nil, nil),
		cpuUsage:    prometheus.NewDesc("analytics_host_cpu_utilization_percent", "Host CPU utilization since the previous scrape.", nil, nil),
	}
}

func (c *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalMemory
	ch <- c.freeMemory
	ch <- c.cpuUsage
}

func (c *HostCollector) Collect(ch chan<- prometheus.Metric) {
	if vm, err := mem.VirtualMemory(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.totalMemory, prometheus.GaugeValue, float64(vm.Total))
		ch <- prometheus.MustNewConstMetric(c.freeMemory, prometheus.GaugeValue, float64(vm.Free))
	}
	// интервал 0: сравнение с прошлым вызовом, scrape не блокируется
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		ch <- prometheus.MustNewConstMetric(c.cpuUsage, prometheus.GaugeValue, usage[0])
	}
}
