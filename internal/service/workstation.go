package service

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/stemsi/labquiz/internal/model"
	"gopkg.in/yaml.v3"
)

// WorkstationMap resolves client IPs to lab seat labels.
type WorkstationMap struct {
	labels map[string]string
}

// DefaultWorkstationMap is the built-in lab table: 192.168.1.1-31 → WS-01..WS-31
// and the loopback address → WS-local.
func DefaultWorkstationMap() *WorkstationMap {
	labels := map[string]string{"127.0.0.1": "WS-local"}
	for i := 1; i <= 31; i++ {
		labels[fmt.Sprintf("192.168.1.%d", i)] = fmt.Sprintf("WS-%02d", i)
	}
	return &WorkstationMap{labels: labels}
}

// NewWorkstationMap builds a map from an ip → label table. Keys are canonicalized.
func NewWorkstationMap(labels map[string]string) *WorkstationMap {
	m := &WorkstationMap{labels: make(map[string]string, len(labels))}
	for ip, label := range labels {
		if key, ok := canonicalIP(ip); ok {
			m.labels[key] = strings.TrimSpace(label)
		}
	}
	return m
}

// workstationFile is the YAML layout:
//
//	workstations:
//	  192.168.1.1: WS-01
type workstationFile struct {
	Workstations map[string]string `yaml:"workstations"`
}

// LoadWorkstationMap reads a YAML table. An empty path yields the default table.
func LoadWorkstationMap(path string) (*WorkstationMap, error) {
	if path == "" {
		return DefaultWorkstationMap(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workstation map: %w", err)
	}
	var f workstationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse workstation map: %w", err)
	}
	return NewWorkstationMap(f.Workstations), nil
}

// LabelFor returns the label of ip, or "Unknown" for unmapped or malformed input.
// IPv4-mapped IPv6 addresses resolve like their IPv4 form.
func (m *WorkstationMap) LabelFor(ip string) string {
	key, ok := canonicalIP(ip)
	if !ok {
		return model.UnknownWorkstation
	}
	if label, ok := m.labels[key]; ok {
		return label
	}
	return model.UnknownWorkstation
}

// Len returns the number of mapped addresses.
func (m *WorkstationMap) Len() int { return len(m.labels) }

// CleanIP strips the IPv4-mapped prefix and surrounding space from a client address.
func CleanIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if key, ok := canonicalIP(ip); ok {
		return key
	}
	return ip
}

func canonicalIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "::ffff:")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
