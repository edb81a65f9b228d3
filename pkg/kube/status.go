package kube

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

// ReadHealth returns the ready and desired replica counts for a deployment.
// It implements the verifier's StatusProvider contract.
func (c *Client) ReadHealth(ctx context.Context, namespace, deployment string) (int32, int32, error) {
	var dep appsv1.Deployment
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.get(ctx, path, &dep); err != nil {
		return 0, 0, err
	}
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	return dep.Status.ReadyReplicas, desired, nil
}

// DeploymentStatus returns a human-readable summary of a deployment.
func (c *Client) DeploymentStatus(ctx context.Context, namespace, deployment string) (bool, string) {
	var dep appsv1.Deployment
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.get(ctx, path, &dep); err != nil {
		return false, fmt.Sprintf("failed: %v", err)
	}
	desired := int32(0)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	image := ""
	if len(dep.Spec.Template.Spec.Containers) > 0 {
		image = dep.Spec.Template.Spec.Containers[0].Image
	}
	return true, fmt.Sprintf(
		"Deployment: %s\nNamespace: %s\nReplicas: %d/%d ready\nAvailable: %d\nUpdated: %d\nStrategy: %s\nImage: %s",
		deployment, namespace, dep.Status.ReadyReplicas, desired,
		dep.Status.AvailableReplicas, dep.Status.UpdatedReplicas,
		dep.Spec.Strategy.Type, image)
}

// PodLogs fetches the last tailLines log lines of a pod.
func (c *Client) PodLogs(ctx context.Context, namespace, pod string, tailLines int) (string, error) {
	if tailLines <= 0 {
		tailLines = 50
	}
	path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/log?tailLines=%d", namespace, pod, tailLines)
	data, err := c.do(ctx, "GET", path, "", nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RecentLogs implements the log retriever contract against the apiserver.
// Failures return "" so the pipeline continues without logs.
func (c *Client) RecentLogs(ctx context.Context, namespace, pod string, limit int) string {
	if pod == "" {
		return ""
	}
	logs, err := c.PodLogs(ctx, namespace, pod, limit)
	if err != nil {
		c.log.WithError(err).WithField("pod", pod).Debug("Pod log fetch failed")
		return ""
	}
	return logs
}

// PodEvents returns recent events for a pod (or the namespace when pod is
// empty), most recent first.
func (c *Client) PodEvents(ctx context.Context, namespace, pod string) (bool, string) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/events?limit=20", namespace)
	if pod != "" {
		path += "&fieldSelector=" + url.QueryEscape("involvedObject.name="+pod)
	}
	var events corev1.EventList
	if err := c.get(ctx, path, &events); err != nil {
		return false, fmt.Sprintf("failed: %v", err)
	}
	if len(events.Items) == 0 {
		return true, "No events found"
	}
	sort.Slice(events.Items, func(i, j int) bool {
		return events.Items[i].LastTimestamp.After(events.Items[j].LastTimestamp.Time)
	})
	if len(events.Items) > 10 {
		events.Items = events.Items[:10]
	}
	var lines []string
	for _, e := range events.Items {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", e.Type, e.Reason, e.Message))
	}
	return true, strings.Join(lines, "\n")
}

// NodeHealth summarizes the readiness and pressure conditions of all nodes.
func (c *Client) NodeHealth(ctx context.Context) (bool, string) {
	var nodes corev1.NodeList
	if err := c.get(ctx, "/api/v1/nodes", &nodes); err != nil {
		return false, fmt.Sprintf("failed: %v", err)
	}
	var lines []string
	for _, node := range nodes.Items {
		conditions := make(map[corev1.NodeConditionType]corev1.ConditionStatus)
		for _, cond := range node.Status.Conditions {
			conditions[cond.Type] = cond.Status
		}
		lines = append(lines, fmt.Sprintf("%s: Ready=%s, Disk=%s, Memory=%s",
			node.Name,
			condOrUnknown(conditions, corev1.NodeReady),
			condOrUnknown(conditions, corev1.NodeDiskPressure),
			condOrUnknown(conditions, corev1.NodeMemoryPressure)))
	}
	return true, strings.Join(lines, "\n")
}

func condOrUnknown(m map[corev1.NodeConditionType]corev1.ConditionStatus, t corev1.NodeConditionType) corev1.ConditionStatus {
	if s, ok := m[t]; ok {
		return s
	}
	return corev1.ConditionUnknown
}
