package doseaudit

import "context"

// Validate runs the safety pipeline on a structured prescription.
func (c *Client) Validate(ctx context.Context, p Prescription) (Result, error) {
	req, err := p.toDomain()
	if err != nil {
		return Result{}, err
	}
	r, err := c.pipeline.Validate(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return resultFromDomain(r), nil
}

// ValidateText extracts a prescription from free-text plan notes and
// runs the safety pipeline on it.
func (c *Client) ValidateText(ctx context.Context, planText string) (Result, error) {
	r, err := c.pipeline.ValidateText(ctx, planText)
	if err != nil {
		return Result{}, err
	}
	return resultFromDomain(r), nil
}

// Run returns a stored validation verdict by run ID.
// Returns ErrDocumentNotFound if the run is unknown or expired.
func (c *Client) Run(ctx context.Context, runID string) (Result, error) {
	r, err := c.pipeline.Run(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	return resultFromDomain(r), nil
}
