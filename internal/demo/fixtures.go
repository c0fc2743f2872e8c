package demo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"funnel/api/internal/store"
)

//go:embed emails.json
var fixtureEmails []byte

// Email is one simulated inbound email plus its pre-computed extraction.
type Email struct {
	ID              string     `json:"id"`
	From            string     `json:"from"`
	FromName        string     `json:"from_name"`
	Subject         string     `json:"subject"`
	Body            string     `json:"body"`
	PromotesDealID  string     `json:"promotes_deal_id,omitempty"`
	PromotesToStage string     `json:"promotes_to_stage,omitempty"`
	Extraction      Extraction `json:"extraction"`
}

// Extraction is the CRM payload an email yields.
type Extraction struct {
	Deals    []store.Deal    `json:"deals"`
	Tasks    []store.Task    `json:"tasks"`
	Contacts []store.Contact `json:"contacts"`
}

// materializeEmails stamps the embedded fixtures with absolute timestamps
// relative to now, then decodes them. Fixture dates are stored as day
// offsets (due_in_days, expected_close_in_days) so a session started today
// always shows plausible deadlines.
func materializeEmails(userID string, now time.Time) ([]Email, error) {
	doc := fixtureEmails
	stamp := now.UTC().Format(time.RFC3339)

	emailCount := gjson.GetBytes(doc, "#").Int()
	for i := int64(0); i < emailCount; i++ {
		var err error

		dealCount := gjson.GetBytes(doc, fmt.Sprintf("%d.extraction.deals.#", i)).Int()
		for j := int64(0); j < dealCount; j++ {
			base := fmt.Sprintf("%d.extraction.deals.%d", i, j)
			days := gjson.GetBytes(doc, base+".expected_close_in_days").Int()
			closeAt := now.UTC().AddDate(0, 0, int(days)).Format(time.RFC3339)
			if doc, err = sjson.SetBytes(doc, base+".expected_close_date", closeAt); err != nil {
				return nil, fmt.Errorf("stamp deal close date: %w", err)
			}
			if doc, err = sjson.DeleteBytes(doc, base+".expected_close_in_days"); err != nil {
				return nil, err
			}
			if doc, err = stampCommon(doc, base, stamp); err != nil {
				return nil, err
			}
		}

		taskCount := gjson.GetBytes(doc, fmt.Sprintf("%d.extraction.tasks.#", i)).Int()
		for j := int64(0); j < taskCount; j++ {
			base := fmt.Sprintf("%d.extraction.tasks.%d", i, j)
			days := gjson.GetBytes(doc, base+".due_in_days").Int()
			due := now.UTC().AddDate(0, 0, int(days)).Format(time.RFC3339)
			if doc, err = sjson.SetBytes(doc, base+".due_date", due); err != nil {
				return nil, fmt.Errorf("stamp task due date: %w", err)
			}
			if doc, err = sjson.DeleteBytes(doc, base+".due_in_days"); err != nil {
				return nil, err
			}
			if doc, err = stampCommon(doc, base, stamp); err != nil {
				return nil, err
			}
		}

		contactCount := gjson.GetBytes(doc, fmt.Sprintf("%d.extraction.contacts.#", i)).Int()
		for j := int64(0); j < contactCount; j++ {
			base := fmt.Sprintf("%d.extraction.contacts.%d", i, j)
			if doc, err = sjson.SetBytes(doc, base+".last_contact_date", stamp); err != nil {
				return nil, err
			}
			if doc, err = stampCommon(doc, base, stamp); err != nil {
				return nil, err
			}
		}
	}

	var emails []Email
	if err := json.Unmarshal(doc, &emails); err != nil {
		return nil, fmt.Errorf("decode demo emails: %w", err)
	}

	for i := range emails {
		ex := &emails[i].Extraction
		for j := range ex.Deals {
			ex.Deals[j].UserID = userID
		}
		for j := range ex.Tasks {
			ex.Tasks[j].UserID = userID
		}
		for j := range ex.Contacts {
			ex.Contacts[j].UserID = userID
		}
	}
	return emails, nil
}

func stampCommon(doc []byte, base, stamp string) ([]byte, error) {
	var err error
	if doc, err = sjson.SetBytes(doc, base+".created_at", stamp); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetBytes(doc, base+".updated_at", stamp); err != nil {
		return nil, err
	}
	return doc, nil
}
