package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Watcher ---
	for _, kind := range []string{"created", "changed", "deleted", "renamed"} {
		WatcherEventsTotal.WithLabelValues(kind)
	}
	for _, reason := range []string{"ignored", "filtered", "vanished", "fold_error"} {
		WatcherEventsDropped.WithLabelValues(reason)
	}
	for _, outcome := range []string{"moved", "deleted"} {
		DirectoryMovesTotal.WithLabelValues(outcome)
	}

	// --- Flush passes and reconciliation ---
	for _, r := range []string{"completed", "suspended", "deferred"} {
		FlushPassesTotal.WithLabelValues(r)
	}
	transitions := []string{"create_normal", "create_sidecar", "rename_sidecar", "remove_sidecar", "delete_normal"}
	for _, tr := range transitions {
		for _, r := range []string{"success", "precondition", "error", "skipped"} {
			ReconcileTotal.WithLabelValues(tr, r)
		}
		ReconcileDuration.WithLabelValues(tr)
	}

	// --- Catalog ---
	for _, kind := range []string{"category", "label"} {
		ParserRuleErrors.WithLabelValues(kind)
	}
	for _, kind := range []string{"mapping", "content", "category", "label"} {
		CatalogItemsTotal.WithLabelValues(kind)
	}

	// --- Thumbnails ---
	for _, d := range []string{"vips", "imaging"} {
		ThumbnailGenerationsTotal.WithLabelValues(d, "success")
		ThumbnailGenerationsTotal.WithLabelValues(d, "error")
		ThumbnailGenerationDuration.WithLabelValues(d)
	}

	// --- Filesystem (per volume × operation) ---
	volumes := []string{"virtual", "physical", "cache", "database", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "move", "copy", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open", "move", "remove"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- DB query operations ---
	for _, op := range []string{"load_mapping", "find_mappings", "save_mapping", "delete_mapping",
		"load_category", "find_children", "save_category", "load_content", "save_content",
		"load_label", "save_label", "attach_label", "load_setting", "save_setting",
		"save_event", "load_event", "load_workspace", "save_workspace", "count"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
