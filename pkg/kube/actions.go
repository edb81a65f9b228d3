package kube

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ScaleDeployment sets the replica count of a deployment. Scaling to the
// current count is a successful no-op.
func (c *Client) ScaleDeployment(ctx context.Context, namespace, deployment string, replicas int32) (bool, string) {
	var dep appsv1.Deployment
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.get(ctx, path, &dep); err != nil {
		return false, fmt.Sprintf("scale failed: %v", err)
	}
	if dep.Spec.Replicas != nil && *dep.Spec.Replicas == replicas {
		return true, fmt.Sprintf("already at %d replicas", replicas)
	}
	patch := map[string]interface{}{"spec": map[string]interface{}{"replicas": replicas}}
	if err := c.patch(ctx, path+"/scale", mergePatch, patch); err != nil {
		return false, fmt.Sprintf("scale failed: %v", err)
	}
	return true, fmt.Sprintf("scaled %s to %d replicas", deployment, replicas)
}

// RestartDeployment triggers a rolling restart via the restartedAt
// annotation, the same mechanism kubectl rollout restart uses.
func (c *Client) RestartDeployment(ctx context.Context, namespace, deployment string) (bool, string) {
	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{
						"kubectl.kubernetes.io/restartedAt": time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.patch(ctx, path, strategicMergePatch, patch); err != nil {
		return false, fmt.Sprintf("restart failed: %v", err)
	}
	return true, fmt.Sprintf("restarted %s", deployment)
}

// RollbackDeployment repoints the deployment at the image of its previous
// ReplicaSet revision.
func (c *Client) RollbackDeployment(ctx context.Context, namespace, deployment string) (bool, string) {
	var dep appsv1.Deployment
	depPath := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.get(ctx, depPath, &dep); err != nil {
		return false, fmt.Sprintf("rollback failed: %v", err)
	}

	var rsList appsv1.ReplicaSetList
	listPath := fmt.Sprintf("/apis/apps/v1/namespaces/%s/replicasets", namespace)
	if sel := labelSelector(dep.Spec.Selector.MatchLabels); sel != "" {
		listPath += "?labelSelector=" + url.QueryEscape(sel)
	}
	if err := c.get(ctx, listPath, &rsList); err != nil {
		return false, fmt.Sprintf("rollback failed: %v", err)
	}
	if len(rsList.Items) < 2 {
		return false, "no previous revision available"
	}

	sort.Slice(rsList.Items, func(i, j int) bool {
		return rsList.Items[i].CreationTimestamp.After(rsList.Items[j].CreationTimestamp.Time)
	})
	prev := rsList.Items[1]
	if len(prev.Spec.Template.Spec.Containers) == 0 {
		return false, "could not determine previous revision"
	}
	prevContainer := prev.Spec.Template.Spec.Containers[0]

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []map[string]interface{}{
						{"name": prevContainer.Name, "image": prevContainer.Image},
					},
				},
			},
		},
	}
	if err := c.patch(ctx, depPath, strategicMergePatch, patch); err != nil {
		return false, fmt.Sprintf("rollback failed: %v", err)
	}
	return true, fmt.Sprintf("rolled back %s to %s", deployment, prevContainer.Image)
}

// CordonNode marks a node unschedulable.
func (c *Client) CordonNode(ctx context.Context, node string) (bool, string) {
	if ok, msg := c.setUnschedulable(ctx, node, true); !ok {
		return false, msg
	}
	return true, fmt.Sprintf("node %s cordoned (unschedulable)", node)
}

// UncordonNode marks a node schedulable again.
func (c *Client) UncordonNode(ctx context.Context, node string) (bool, string) {
	if ok, msg := c.setUnschedulable(ctx, node, false); !ok {
		return false, msg
	}
	return true, fmt.Sprintf("node %s uncordoned (schedulable)", node)
}

func (c *Client) setUnschedulable(ctx context.Context, node string, unschedulable bool) (bool, string) {
	patch := map[string]interface{}{"spec": map[string]interface{}{"unschedulable": unschedulable}}
	if err := c.patch(ctx, "/api/v1/nodes/"+node, mergePatch, patch); err != nil {
		return false, fmt.Sprintf("patch node failed: %v", err)
	}
	return true, ""
}

// DeletePod deletes a pod, with grace period zero when force is set.
func (c *Client) DeletePod(ctx context.Context, namespace, pod string, force bool) (bool, string) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s", namespace, pod)
	if force {
		path += "?gracePeriodSeconds=0"
	}
	if err := c.delete(ctx, path); err != nil {
		return false, fmt.Sprintf("delete pod failed: %v", err)
	}
	msg := fmt.Sprintf("pod %s deleted", pod)
	if force {
		msg += " (force)"
	}
	return true, msg
}

// UpdateHPA adjusts min/max replicas on a HorizontalPodAutoscaler. Nil
// values leave the corresponding bound unchanged.
func (c *Client) UpdateHPA(ctx context.Context, namespace, name string, minReplicas, maxReplicas *int32) (bool, string) {
	if minReplicas == nil && maxReplicas == nil {
		return false, "no HPA changes specified"
	}
	path := fmt.Sprintf("/apis/autoscaling/v2/namespaces/%s/horizontalpodautoscalers/%s", namespace, name)
	var hpa autoscalingv2.HorizontalPodAutoscaler
	if err := c.get(ctx, path, &hpa); err != nil {
		return false, fmt.Sprintf("update HPA failed: %v", err)
	}

	spec := map[string]interface{}{}
	if minReplicas != nil {
		spec["minReplicas"] = *minReplicas
	}
	if maxReplicas != nil {
		spec["maxReplicas"] = *maxReplicas
	}
	if err := c.patch(ctx, path, mergePatch, map[string]interface{}{"spec": spec}); err != nil {
		return false, fmt.Sprintf("update HPA failed: %v", err)
	}
	return true, fmt.Sprintf("HPA %s updated: min=%s, max=%s", name, boundOrUnchanged(minReplicas), boundOrUnchanged(maxReplicas))
}

// PatchResourceLimits updates CPU/memory limits of the deployment's first
// container. Quantities are validated before the patch is sent.
func (c *Client) PatchResourceLimits(ctx context.Context, namespace, deployment, cpuLimit, memoryLimit string) (bool, string) {
	limits := map[string]string{}
	if cpuLimit != "" {
		if _, err := resource.ParseQuantity(cpuLimit); err != nil {
			return false, fmt.Sprintf("invalid cpu limit %q: %v", cpuLimit, err)
		}
		limits["cpu"] = cpuLimit
	}
	if memoryLimit != "" {
		if _, err := resource.ParseQuantity(memoryLimit); err != nil {
			return false, fmt.Sprintf("invalid memory limit %q: %v", memoryLimit, err)
		}
		limits["memory"] = memoryLimit
	}
	if len(limits) == 0 {
		return false, "no resource changes specified"
	}

	var dep appsv1.Deployment
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.get(ctx, path, &dep); err != nil {
		return false, fmt.Sprintf("patch resources failed: %v", err)
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return false, "deployment has no containers"
	}

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []map[string]interface{}{
						{
							"name":      dep.Spec.Template.Spec.Containers[0].Name,
							"resources": map[string]interface{}{"limits": limits},
						},
					},
				},
			},
		},
	}
	if err := c.patch(ctx, path, strategicMergePatch, patch); err != nil {
		return false, fmt.Sprintf("patch resources failed: %v", err)
	}
	return true, fmt.Sprintf("resources updated for %s: limits=%v", deployment, limits)
}

// DrainNode cordons the node and evicts its pods, skipping kube-system and
// DaemonSet-owned pods.
func (c *Client) DrainNode(ctx context.Context, node string) (bool, string) {
	if ok, msg := c.setUnschedulable(ctx, node, true); !ok {
		return false, "failed to cordon: " + msg
	}

	var pods corev1.PodList
	path := "/api/v1/pods?fieldSelector=" + url.QueryEscape("spec.nodeName="+node)
	if err := c.get(ctx, path, &pods); err != nil {
		return false, fmt.Sprintf("drain failed listing pods: %v", err)
	}

	evicted, skipped := 0, 0
	for _, pod := range pods.Items {
		if pod.Namespace == "kube-system" || ownedByDaemonSet(&pod) {
			skipped++
			continue
		}
		delPath := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s?gracePeriodSeconds=30", pod.Namespace, pod.Name)
		if err := c.delete(ctx, delPath); err != nil {
			c.log.WithError(err).WithField("pod", pod.Name).Warn("Drain: pod eviction failed")
			continue
		}
		evicted++
	}
	return true, fmt.Sprintf("node %s drained: %d pods evicted, %d skipped", node, evicted, skipped)
}

// DeleteDeployment removes a deployment entirely.
func (c *Client) DeleteDeployment(ctx context.Context, namespace, deployment string) (bool, string) {
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", namespace, deployment)
	if err := c.delete(ctx, path); err != nil {
		return false, fmt.Sprintf("delete deployment failed: %v", err)
	}
	return true, fmt.Sprintf("deployment %s deleted from %s", deployment, namespace)
}

func boundOrUnchanged(v *int32) string {
	if v == nil {
		return "unchanged"
	}
	return strconv.Itoa(int(*v))
}

func ownedByDaemonSet(pod *corev1.Pod) bool {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}

func labelSelector(labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
