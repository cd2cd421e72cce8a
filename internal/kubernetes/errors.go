package kubernetes

import "fmt"

const (
	ErrCodeKubeconfigFailed = iota + 1
	ErrCodeClientsetFailed
	ErrCodeServiceNotFound
)

// KubernetesError carries a stable code so callers can branch on the
// failure class without string matching.
type KubernetesError struct {
	Code    int
	Message string
	Err     error
}

func (e *KubernetesError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *KubernetesError) Unwrap() error {
	return e.Err
}

func NewKubeconfigError(err error) *KubernetesError {
	return &KubernetesError{
		Code:    ErrCodeKubeconfigFailed,
		Message: "failed to get kubeconfig",
		Err:     err,
	}
}

func NewClientsetError(err error) *KubernetesError {
	return &KubernetesError{
		Code:    ErrCodeClientsetFailed,
		Message: "failed to create Kubernetes clientset",
		Err:     err,
	}
}

func NewServiceNotFoundError(name, namespace string, err error) *KubernetesError {
	return &KubernetesError{
		Code:    ErrCodeServiceNotFound,
		Message: fmt.Sprintf("control plane API service %s/%s not found (is the mesh control plane installed?)", namespace, name),
		Err:     err,
	}
}
