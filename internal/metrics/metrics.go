// Package metrics exposes prometheus counters for the upload pipeline and listing
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "videos"

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads by outcome (success, failure, rejected)",
		},
		[]string{"outcome"},
	)

	uploadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Failed uploads by pipeline stage and error class",
		},
		[]string{"stage", "class"},
	)

	orphanedBlobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_blobs_total",
			Help:      "Blobs written without a metadata record, by compensation result",
		},
		[]string{"stage", "compensation"},
	)

	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Bytes durably written to the blob store",
	})

	listingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_failures_total",
		Help:      "Listing requests that failed on the metadata store",
	})
)

// RecordUploadSuccess counts a completed upload of size bytes
func RecordUploadSuccess(size int64) {
	uploadsTotal.WithLabelValues("success").Inc()
	uploadedBytes.Add(float64(size))
}

// RecordUploadRejected counts an upload refused before any store call
func RecordUploadRejected() {
	uploadsTotal.WithLabelValues("rejected").Inc()
}

// RecordUploadFailure counts a failed upload at stage with the given error class
func RecordUploadFailure(stage, class string) {
	uploadsTotal.WithLabelValues("failure").Inc()
	uploadFailures.WithLabelValues(stage, class).Inc()
}

// RecordOrphanedBlob counts a blob left without metadata.
// compensation is "deleted" when the blob was removed again, "failed" otherwise.
func RecordOrphanedBlob(stage, compensation string) {
	orphanedBlobs.WithLabelValues(stage, compensation).Inc()
}

// RecordListingFailure counts a failed listing
func RecordListingFailure() {
	listingFailures.Inc()
}
