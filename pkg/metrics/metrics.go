// Package metrics exposes prometheus counters for a sweep run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cleanvault"

// Metrics holds the counters updated by the scanner, decryptor and disbursers.
type Metrics struct {
	KeystoresScanned prometheus.Counter
	HoldersFound     prometheus.Counter
	DecryptFailures  prometheus.Counter
	TxSent           *prometheus.CounterVec
	TxFailed         *prometheus.CounterVec
	TxReverted       *prometheus.CounterVec
}

// New registers the sweep counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		KeystoresScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keystores_scanned_total",
			Help:      "Keystore files parsed from the keys directory.",
		}),
		HoldersFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_holders_found_total",
			Help:      "Keystores whose address holds a positive token balance.",
		}),
		DecryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_failures_total",
			Help:      "Keystores that could not be unlocked with the shared passphrase.",
		}),
		TxSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_sent_total",
			Help:      "Transactions broadcast and confirmed, by disbursement phase.",
		}, []string{"phase"}),
		TxFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_failed_total",
			Help:      "Sends that aborted a disbursement phase.",
		}, []string{"phase"}),
		TxReverted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_reverted_total",
			Help:      "Confirmed transactions whose receipt reports execution failure.",
		}, []string{"phase"}),
	}
}

// NewNop returns counters bound to a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Serve exposes gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
