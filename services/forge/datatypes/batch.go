// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// BatchRequest is the orchestrator entry point payload. Validation
// tags are enforced by gin's binding before any work starts.
type BatchRequest struct {
	// Deploy publishes generated artifacts to the external providers.
	Deploy bool `json:"deploy"`

	// CleanFirst backs up and tears down each job's existing
	// resources before regeneration.
	CleanFirst bool `json:"cleanFirst"`

	// Jobs are the generation targets. At least one is required.
	Jobs []JobSpec `json:"jobs" binding:"required,min=1,dive"`

	// Customizations are optional per-job overrides matched by ID.
	Customizations []Customization `json:"customizations,omitempty"`
}

// JobSpec is the wire form of one job in a batch request.
type JobSpec struct {
	ID        string   `json:"id" binding:"required"`
	Name      string   `json:"name" binding:"required"`
	Industry  string   `json:"industry"`
	Tagline   string   `json:"tagline"`
	Location  string   `json:"location"`
	Theme     string   `json:"theme"`
	Pages     []string `json:"pages"`
	Modules   []string `json:"modules"`
	AdminTier string   `json:"adminTier"`
}

// Customization overrides name, tagline, or location for the job
// whose ID matches. Empty fields leave the original value.
type Customization struct {
	ID       string `json:"id" binding:"required"`
	Name     string `json:"name,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
	Location string `json:"location,omitempty"`
}

// Descriptor merges a spec with its customization (if any) into an
// immutable JobDescriptor.
func (s JobSpec) Descriptor(deploy bool, custom *Customization) JobDescriptor {
	d := JobDescriptor{
		ID:        s.ID,
		Name:      s.Name,
		Industry:  s.Industry,
		Tagline:   s.Tagline,
		Location:  s.Location,
		Theme:     s.Theme,
		Pages:     append([]string(nil), s.Pages...),
		Modules:   append([]string(nil), s.Modules...),
		AdminTier: s.AdminTier,
		Deploy:    deploy,
	}
	if d.AdminTier == "" {
		d.AdminTier = "auto"
	}
	if custom != nil {
		if custom.Name != "" {
			d.Name = custom.Name
		}
		if custom.Tagline != "" {
			d.Tagline = custom.Tagline
		}
		if custom.Location != "" {
			d.Location = custom.Location
		}
	}
	return d
}

// BatchSummary is the final accounting emitted with batch-complete
// and returned by the batch status endpoint.
type BatchSummary struct {
	BatchID   string      `json:"batchId"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	ElapsedMS int64       `json:"elapsedMs"`
	Results   []JobResult `json:"results"`
}
