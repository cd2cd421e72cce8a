// Package kubernetes locates the mesh control plane API inside a
// cluster. The API is reached through the Kubernetes API server's
// service proxy, so no port-forward or ingress is required.
package kubernetes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
)

type APILocator interface {
	Locate(ctx context.Context) (string, error)
}

type ClientsetProvider interface {
	GetClientset() kubernetes.Interface
}

type Locator struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
}

var _ APILocator = (*Locator)(nil)

func (l *Locator) GetClientset() kubernetes.Interface {
	return l.clientset
}

func NewLocator() (*Locator, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()

		if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
			loadingRules.ExplicitPath = kubeconfig
		} else {
			sudoUser := os.Getenv("SUDO_USER")
			if sudoUser != "" {
				homePath := filepath.Join("/home", sudoUser, ".kube", "config")
				if _, err := os.Stat(homePath); err == nil {
					loadingRules.ExplicitPath = homePath
				}
			}
			if loadingRules.ExplicitPath == "" {
				if home := os.Getenv("HOME"); home != "" && home != "/root" {
					homePath := filepath.Join(home, ".kube", "config")
					if _, err := os.Stat(homePath); err == nil {
						loadingRules.ExplicitPath = homePath
					}
				}
			}
		}

		configOverrides := &clientcmd.ConfigOverrides{}
		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

		restConfig, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, NewKubeconfigError(err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, NewClientsetError(err)
	}

	return &Locator{clientset: clientset, restConfig: restConfig}, nil
}

// Locate verifies the control plane API service exists and returns its
// service-proxy base URL on the API server.
func (l *Locator) Locate(ctx context.Context) (string, error) {
	svc, err := l.clientset.CoreV1().Services(config.ControlNamespace).Get(ctx, config.ControlAPIService, metav1.GetOptions{})
	if err != nil {
		return "", NewServiceNotFoundError(config.ControlAPIService, config.ControlNamespace, err)
	}

	base := strings.TrimRight(l.restConfig.Host, "/")
	addr := fmt.Sprintf("%s/api/v1/namespaces/%s/services/%s/proxy", base, svc.Namespace, servicePortRef(svc))
	logger.Debug("Resolved control plane API through the API server proxy",
		zap.String("service", svc.Namespace+"/"+svc.Name),
		zap.String("addr", addr))
	return addr, nil
}

// servicePortRef names the port segment of the proxy path. The proxy
// accepts a port name or number; the name is used when the configured
// port carries one.
func servicePortRef(svc *corev1.Service) string {
	for _, p := range svc.Spec.Ports {
		if p.Port == int32(config.ControlAPIPort) {
			if p.Name != "" {
				return svc.Name + ":" + p.Name
			}
			return fmt.Sprintf("%s:%d", svc.Name, p.Port)
		}
	}
	return fmt.Sprintf("%s:%d", svc.Name, config.ControlAPIPort)
}

// ResolveBaseURL returns the MESHTAP_API_ADDR override when set,
// otherwise locates the API through the cluster.
func ResolveBaseURL(ctx context.Context) (string, error) {
	if addr := config.APIAddrOverride; addr != "" {
		logger.Debug("Using control plane API address override", zap.String("addr", addr))
		return addr, nil
	}

	locator, err := NewLocator()
	if err != nil {
		return "", err
	}
	return locator.Locate(ctx)
}
