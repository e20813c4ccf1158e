// Package kube builds the cluster clients railtopo uses to read node/pod
// state and to deploy and tear down self-test resources.
package kube

import (
	"fmt"
	"os"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// BuildRestConfig resolves a REST config in the following order: explicit
// kubeconfig path, explicit server/token/CA environment variables, in-cluster
// config, then the default kubeconfig loading rules.
func BuildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("build config from kubeconfig %q: %w", kubeconfigPath, err)
		}
		return cfg, nil
	}

	if cfg, ok := configFromEnv(); ok {
		return cfg, nil
	}

	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kube client config: %w", err)
	}
	return cfg, nil
}

// configFromEnv builds a REST config from RAILTOPO_KUBE_SERVER /
// RAILTOPO_KUBE_TOKEN / RAILTOPO_KUBE_CA / RAILTOPO_KUBE_INSECURE, the
// environment-variable discovery path required by the external-interfaces
// authentication contract. Returns ok=false when the server URL is unset so
// callers fall through to the usual kubeconfig/in-cluster chain.
func configFromEnv() (*rest.Config, bool) {
	server := os.Getenv("RAILTOPO_KUBE_SERVER")
	if server == "" {
		return nil, false
	}

	cfg := &rest.Config{
		Host:        server,
		BearerToken: os.Getenv("RAILTOPO_KUBE_TOKEN"),
	}

	if ca := os.Getenv("RAILTOPO_KUBE_CA"); ca != "" {
		cfg.TLSClientConfig.CAFile = ca
	}
	if os.Getenv("RAILTOPO_KUBE_INSECURE") == "true" {
		cfg.TLSClientConfig.Insecure = true
	}

	return cfg, true
}

// NewClient builds a typed clientset for node/pod/service/configmap/job/event
// access.
func NewClient(kubeconfigPath string) (kubernetes.Interface, error) {
	cfg, err := BuildRestConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(cfg)
}

// NewDynamicClient builds a dynamic client for CRDs without generated Go
// types in this module, such as the SR-IOV network operator's resources.
func NewDynamicClient(kubeconfigPath string) (dynamic.Interface, error) {
	cfg, err := BuildRestConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	return dynamic.NewForConfig(cfg)
}
