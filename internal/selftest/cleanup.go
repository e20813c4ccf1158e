package selftest

import (
	"context"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/railtopo/railtopo/internal/workload"
)

// Cleanup deletes the Job×2, Service, and ConfigMap a self-test run created,
// addressed by the resource names derived from testID, ignoring not-found so
// a partial or repeated cleanup is always safe.
func Cleanup(ctx context.Context, client kubernetes.Interface, namespace, testID string, logger zerolog.Logger) {
	deleteJob(ctx, client, namespace, workload.JobName(testID, "server"), logger)
	deleteJob(ctx, client, namespace, workload.JobName(testID, "client"), logger)

	svc := workload.ServiceName(testID)
	if err := client.CoreV1().Services(namespace).Delete(ctx, svc, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
		logger.Warn().Err(err).Str("resource", svc).Msg("cleanup: delete service")
	}
	cm := workload.ScriptConfigMapName(testID)
	if err := client.CoreV1().ConfigMaps(namespace).Delete(ctx, cm, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
		logger.Warn().Err(err).Str("resource", cm).Msg("cleanup: delete configmap")
	}
}

func deleteJob(ctx context.Context, client kubernetes.Interface, namespace, name string, logger zerolog.Logger) {
	propagation := metav1.DeletePropagationBackground
	err := client.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil && !errors.IsNotFound(err) {
		logger.Warn().Err(err).Str("resource", name).Msg("cleanup: delete job")
	}
}
