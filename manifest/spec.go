package manifest

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ManagedByLabel marks every pod created by podrun.
const ManagedByLabel = "app.kubernetes.io/managed-by"

// WorkloadSpec describes a single-use pod. It is not modified after submission.
type WorkloadSpec struct {
	Name          string
	Namespace     string
	ContainerName string
	Image         string
	Command       []string
	Args          []string
	Env           []EnvVar
	RestartPolicy corev1.RestartPolicy
	Labels        map[string]string
}

// Pod renders the spec as a Pod object ready for creation.
func (s *WorkloadSpec) Pod() *corev1.Pod {
	var env []corev1.EnvVar
	for _, e := range s.Env {
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.Name,
			Namespace: s.Namespace,
			Labels:    s.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: s.RestartPolicy,
			Containers: []corev1.Container{
				{
					Name:    s.ContainerName,
					Image:   s.Image,
					Command: s.Command,
					Args:    s.Args,
					Env:     env,
				},
			},
		},
	}
}
