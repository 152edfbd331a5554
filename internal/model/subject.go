// Package model defines the shared data types for the prospect research pipeline.
package model

import "strings"

// Subject is the person being researched.
type Subject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Address      string `json:"address,omitempty"`
	Employer     string `json:"employer,omitempty"`
	Title        string `json:"title,omitempty"`
	Email        string `json:"email,omitempty"`
	SalesforceID string `json:"salesforce_id,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// FirstName returns the leading token of the subject's name.
func (s Subject) FirstName() string {
	parts := strings.Fields(s.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns the trailing token of the subject's name.
func (s Subject) LastName() string {
	parts := strings.Fields(s.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Valid reports whether the subject carries enough identity to research.
func (s Subject) Valid() bool {
	return strings.TrimSpace(s.Name) != ""
}
