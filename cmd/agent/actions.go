package main

import (
	"context"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/config"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/dispatch"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/notify"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/retrieval"
	"github.com/invisible-tech/autopilot-remediation-agent/pkg/kube"
)

const (
	minReplicas = 1
	maxReplicas = 10
	// defaultReplicas is the scale target when the recommender omits one.
	defaultReplicas = 2
)

// registerActions binds every catalogued action the agent can execute to its
// Kubernetes or notification implementation. Arguments come from LLM tool
// calls, so every handler fills in target defaults and clamps numeric inputs
// before touching the cluster.
func registerActions(d *dispatch.Dispatcher, k *kube.Client, notifier notify.Notifier, prom *retrieval.PrometheusClient, cfg config.AgentConfig) {
	ns := func(args map[string]interface{}) string {
		return argString(args, "namespace", cfg.TargetNamespace)
	}
	dep := func(args map[string]interface{}) string {
		return argString(args, "deployment", cfg.TargetDeployment)
	}

	d.Register("send_notification", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		subject := argString(args, "subject", "Incident update")
		message := argString(args, "message", "")
		return notifier.Send(ctx, subject, message)
	})

	d.Register("get_deployment_status", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.DeploymentStatus(ctx, ns(args), dep(args))
	})
	d.Register("get_pod_events", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.PodEvents(ctx, ns(args), argString(args, "pod_name", ""))
	})
	d.Register("query_prometheus", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return prom.Query(ctx, argString(args, "query", "up"))
	})
	d.Register("check_node_health", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.NodeHealth(ctx)
	})

	d.Register("scale_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		replicas := clamp(argInt(args, "replicas", defaultReplicas), minReplicas, maxReplicas)
		return k.ScaleDeployment(ctx, ns(args), dep(args), replicas)
	})
	d.Register("restart_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.RestartDeployment(ctx, ns(args), dep(args))
	})
	d.Register("rollback_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.RollbackDeployment(ctx, ns(args), dep(args))
	})
	d.Register("cordon_node", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		node := argString(args, "node_name", "")
		if node == "" {
			return false, "node name required"
		}
		return k.CordonNode(ctx, node)
	})
	d.Register("uncordon_node", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		node := argString(args, "node_name", "")
		if node == "" {
			return false, "node name required"
		}
		return k.UncordonNode(ctx, node)
	})
	d.Register("delete_pod", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		pod := argString(args, "pod_name", "")
		if pod == "" {
			return false, "pod name required"
		}
		return k.DeletePod(ctx, ns(args), pod, argBool(args, "force"))
	})
	d.Register("update_hpa", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		name := argString(args, "hpa_name", dep(args))
		return k.UpdateHPA(ctx, ns(args), name,
			argInt32Ptr(args, "min_replicas"), argInt32Ptr(args, "max_replicas"))
	})
	d.Register("patch_resource_limits", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.PatchResourceLimits(ctx, ns(args), dep(args),
			argString(args, "cpu_limit", ""), argString(args, "memory_limit", ""))
	})

	d.Register("drain_node", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		node := argString(args, "node_name", "")
		if node == "" {
			return false, "node name required"
		}
		return k.DrainNode(ctx, node)
	})
	d.Register("delete_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return k.DeleteDeployment(ctx, ns(args), dep(args))
	})

	// exec_in_pod needs an SPDY/WebSocket channel to the kubelet, which the
	// REST client does not carry. Keeping the handler registered means the
	// recommender gets a clear failure instead of "unknown action".
	d.Register("exec_in_pod", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return false, "exec_in_pod is not supported by this agent"
	})
}

func argString(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// argInt reads a numeric argument. JSON decoding yields float64 for all
// numbers, so both forms are accepted.
func argInt(args map[string]interface{}, key string, fallback int32) int32 {
	switch v := args[key].(type) {
	case float64:
		return int32(v)
	case int:
		return int32(v)
	}
	return fallback
}

func argInt32Ptr(args map[string]interface{}, key string) *int32 {
	switch v := args[key].(type) {
	case float64:
		n := int32(v)
		return &n
	case int:
		n := int32(v)
		return &n
	}
	return nil
}

func argBool(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
