package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID           string `json:"Id" salesforce:"Id"`
	FirstName    string `json:"FirstName" salesforce:"FirstName"`
	LastName     string `json:"LastName" salesforce:"LastName"`
	Email        string `json:"Email" salesforce:"Email"`
	Title        string `json:"Title" salesforce:"Title"`
	MailingCity  string `json:"MailingCity" salesforce:"MailingCity"`
	MailingState string `json:"MailingState" salesforce:"MailingState"`
	AccountID    string `json:"AccountId" salesforce:"AccountId"`
	Description  string `json:"Description" salesforce:"Description"`
}

// contactFields are the SOQL fields selected for Contact queries.
var contactFields = []string{
	"Id", "FirstName", "LastName", "Email", "Title",
	"MailingCity", "MailingState", "AccountId", "Description",
}

// FindContactByEmail queries Salesforce for a Contact with the given email.
// Returns nil if no contact is found.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Email = '%s' LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(email),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by email %s", email))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// FindContactByID queries Salesforce for a Contact by its ID.
// Returns nil if no contact is found.
func FindContactByID(ctx context.Context, c Client, id string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Id = '%s' LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(id),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by id %s", id))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// UpdateContact updates a Contact record with the given fields.
func UpdateContact(ctx context.Context, c Client, contactID string, fields map[string]any) error {
	if contactID == "" {
		return eris.New("sf: contact id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Contact", contactID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update contact %s", contactID))
	}
	return nil
}

// LogResearchTask creates a completed Task on the contact recording that a
// research run finished, with the report as the task description.
func LogResearchTask(ctx context.Context, c Client, contactID, subject, description string) (string, error) {
	if contactID == "" {
		return "", eris.New("sf: contact id is required for task")
	}
	id, err := c.InsertOne(ctx, "Task", map[string]any{
		"WhoId":       contactID,
		"Subject":     subject,
		"Description": description,
		"Status":      "Completed",
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: log research task for %s", contactID))
	}
	return id, nil
}

// ContactUpdate holds a contact ID and the fields to update.
type ContactUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateContacts splits updates into batches of 200 (SF Collections API
// limit) and sends them via UpdateCollection.
func BulkUpdateContacts(ctx context.Context, c Client, updates []ContactUpdate) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(updates); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(updates) {
			end = len(updates)
		}
		batch := updates[start:end]

		records := make([]CollectionRecord, len(batch))
		for i, u := range batch {
			records[i] = CollectionRecord(u)
		}

		results, err := c.UpdateCollection(ctx, "Contact", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update contacts batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
