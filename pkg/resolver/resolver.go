// Package resolver computes a container's PolicyLevel from its bundle
// config, dispatching between an orchestrator-namespace strategy and an
// image-config strategy.
package resolver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/log"
)

const (
	annotationSandboxLogDirectory = "io.kubernetes.cri.sandbox-log-directory"
	annotationSandboxID           = "io.kubernetes.cri.sandbox-id"
	labelPolicy                   = "org.lockc.policy"
)

// bundleConfig is the subset of <bundle>/config.json the resolver reads.
type bundleConfig struct {
	Annotations map[string]string `json:"annotations"`
	Mounts      []mount           `json:"mounts"`
}

type mount struct {
	Source string `json:"source"`
}

// Resolver computes a PolicyLevel for a newly created container. Any
// error is swallowed internally: resolution always fail-safes to
// PolicyBaseline rather than surfacing an error to the caller.
type Resolver interface {
	Resolve(ctx context.Context, bundlePath string) bpftypes.PolicyLevel
}

// NamespaceResolver reads a Kubernetes Namespace object's enforce label.
//
// The "kube-system" namespace is shortcut-mapped to Privileged without a
// cluster-API round trip: the control-plane pods running there must keep
// working even before/without lockc's own policy enforcement settling in.
type NamespaceResolver interface {
	// PolicyLabel returns the pod-security enforce label value for ns, or
	// "" if the namespace has no such label (and therefore bails to the
	// fail-safe in BundleResolver).
	PolicyLabel(ctx context.Context, ns string) (string, error)
}

// ImageConfigResolver reads a Docker-style config.v2.json's
// org.lockc.policy label.
type ImageConfigResolver struct{}

// BundleResolver is the default Resolver: it classifies the bundle
// (Kubernetes+containerd vs. Docker vs. unknown) and delegates to the
// matching strategy, falling back to Baseline on any error or for an
// unrecognized bundle shape.
type BundleResolver struct {
	Namespaces NamespaceResolver
}

// NewBundleResolver builds a BundleResolver with the given namespace
// strategy (nil disables Kubernetes resolution, falling back to Baseline
// for any annotated bundle).
func NewBundleResolver(ns NamespaceResolver) *BundleResolver {
	return &BundleResolver{Namespaces: ns}
}

func (r *BundleResolver) Resolve(ctx context.Context, bundlePath string) bpftypes.PolicyLevel {
	level, err := r.resolve(ctx, bundlePath)
	if err != nil {
		log.WithComponent("resolver").Warn().Err(err).Str("bundle", bundlePath).
			Msg("resolution failed, falling back to baseline")
		return bpftypes.PolicyBaseline
	}
	return level
}

func (r *BundleResolver) resolve(ctx context.Context, bundlePath string) (bpftypes.PolicyLevel, error) {
	cfg, err := readBundleConfig(bundlePath)
	if err != nil {
		// Fail-safe default-deny-if-unparseable: a missing/odd bundle
		// config is not an error, it's ContainerType::Unknown.
		return bpftypes.PolicyBaseline, nil
	}

	if len(cfg.Annotations) > 0 {
		if logDir, ok := cfg.Annotations[annotationSandboxLogDirectory]; ok {
			ns := namespaceFromLogDirectory(logDir)
			if ns == "" || r.Namespaces == nil {
				return bpftypes.PolicyBaseline, nil
			}
			label, err := r.Namespaces.PolicyLabel(ctx, ns)
			if err != nil {
				return bpftypes.PolicyBaseline, nil
			}
			return mapPolicyLabel(label), nil
		}
		if sandboxID, ok := cfg.Annotations[annotationSandboxID]; ok {
			parent := filepath.Dir(bundlePath)
			sibling := filepath.Join(parent, sandboxID)
			return r.resolve(ctx, sibling)
		}
	}

	for _, m := range cfg.Mounts {
		if strings.HasSuffix(m.Source, "/hostname") {
			configV2 := strings.Replace(m.Source, "hostname", "config.v2.json", 1)
			return resolveImageConfig(configV2), nil
		}
	}

	return bpftypes.PolicyBaseline, nil
}

func readBundleConfig(bundlePath string) (bundleConfig, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, "config.json"))
	if err != nil {
		return bundleConfig{}, err
	}
	var cfg bundleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return bundleConfig{}, err
	}
	return cfg, nil
}

// namespaceFromLogDirectory extracts the namespace from a CRI sandbox log
// directory path: the namespace is the first underscore-separated token
// of the log file's basename.
func namespaceFromLogDirectory(logDir string) string {
	base := filepath.Base(logDir)
	parts := strings.SplitN(base, "_", 2)
	return parts[0]
}

// resolveImageConfig reads .Config.Labels["org.lockc.policy"] from a
// Docker-style config.v2.json at path, falling back to Baseline.
func resolveImageConfig(path string) bpftypes.PolicyLevel {
	data, err := os.ReadFile(path)
	if err != nil {
		return bpftypes.PolicyBaseline
	}

	var doc struct {
		Config struct {
			Labels map[string]string `json:"Labels"`
		} `json:"Config"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return bpftypes.PolicyBaseline
	}

	return mapPolicyLabel(doc.Config.Labels[labelPolicy])
}

func mapPolicyLabel(label string) bpftypes.PolicyLevel {
	switch label {
	case "restricted":
		return bpftypes.PolicyRestricted
	case "baseline":
		return bpftypes.PolicyBaseline
	case "privileged":
		return bpftypes.PolicyPrivileged
	default:
		return bpftypes.PolicyBaseline
	}
}
