package k8s

import (
	"context"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// PodAPI is the slice of the control plane the Controller needs.
type PodAPI interface {
	Create(ctx context.Context, pod *corev1.Pod) (*corev1.Pod, error)
	Get(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	// StreamLogs follows the pod's log until the container exits or the pod
	// is deleted.
	StreamLogs(ctx context.Context, namespace, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, namespace, name string) error
}

// ClientsetAPI implements PodAPI on top of a client-go clientset.
type ClientsetAPI struct {
	client kubernetes.Interface
}

func NewClientsetAPI(client kubernetes.Interface) *ClientsetAPI {
	return &ClientsetAPI{client: client}
}

func (a *ClientsetAPI) Create(ctx context.Context, pod *corev1.Pod) (*corev1.Pod, error) {
	return a.client.CoreV1().Pods(pod.Namespace).Create(ctx, pod, metav1.CreateOptions{})
}

func (a *ClientsetAPI) Get(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	return a.client.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (a *ClientsetAPI) StreamLogs(ctx context.Context, namespace, name string) (io.ReadCloser, error) {
	return a.client.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{Follow: true}).Stream(ctx)
}

func (a *ClientsetAPI) Delete(ctx context.Context, namespace, name string) error {
	return a.client.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
}
