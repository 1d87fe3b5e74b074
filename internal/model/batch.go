package model

// BatchTarget is one page submitted to a batch audit.
type BatchTarget struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// BatchAuditResult is the outcome of auditing one batch target.
// OverallScore is set only on success; Error only on failure.
type BatchAuditResult struct {
	TargetID     string `json:"target_id"`
	URL          string `json:"url"`
	Success      bool   `json:"success"`
	AuditID      string `json:"audit_id,omitempty"`
	OverallScore *int   `json:"overall_score,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewSuccessResult builds the result of a completed audit.
func NewSuccessResult(target BatchTarget, audit *PageAudit) BatchAuditResult {
	return BatchAuditResult{
		TargetID:     target.ID,
		URL:          target.URL,
		Success:      true,
		AuditID:      audit.ID,
		OverallScore: Ptr(audit.OverallScore),
	}
}

// NewFailureResult builds the result of a failed audit.
func NewFailureResult(target BatchTarget, err error) BatchAuditResult {
	return BatchAuditResult{
		TargetID: target.ID,
		URL:      target.URL,
		Success:  false,
		Error:    err.Error(),
	}
}
