package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/notion"
	sfpkg "github.com/sells-group/prospect-cli/pkg/salesforce"
)

// deliverResult pushes a finished research result to every configured
// destination. Delivery is best effort: a failed destination is logged
// and does not fail the run.
func deliverResult(ctx context.Context, env *researchEnv, result *model.ResearchResult) {
	log := zap.L().With(zap.String("subject", result.Subject.Name))

	if env.Salesforce != nil && result.Subject.SalesforceID != "" {
		if err := writeBackSalesforce(ctx, env.Salesforce, result); err != nil {
			log.Warn("salesforce write-back failed", zap.Error(err))
		} else {
			log.Info("salesforce updated", zap.String("contact_id", result.Subject.SalesforceID))
		}
	}

	if env.Notion != nil && cfg.Notion.ReportDB != "" {
		page := notion.ReportPage{
			DatabaseID:     cfg.Notion.ReportDB,
			SubjectName:    result.Subject.Name,
			SalesforceID:   result.Subject.SalesforceID,
			ReportMarkdown: result.Report,
		}
		if result.Verification != nil {
			page.Confidence = result.Verification.OverallConfidence
			page.Verified = result.Verification.Verified
			page.Contradicted = result.Verification.Contradicted
			page.Unverifiable = result.Verification.Unverifiable
		} else if result.Profile != nil {
			page.Confidence = result.Profile.OverallConfidence
		}
		if _, err := env.Notion.CreatePage(ctx, page.BuildCreateRequest()); err != nil {
			log.Warn("notion report page failed", zap.Error(err))
		} else {
			log.Info("notion report page created")
		}
	}

	if env.Webhook.Enabled() {
		if err := env.Webhook.Deliver(ctx, result); err != nil {
			log.Warn("webhook delivery failed", zap.Error(err))
		} else {
			log.Info("webhook delivered")
		}
	}
}

func writeBackSalesforce(ctx context.Context, client sfpkg.Client, result *model.ResearchResult) error {
	fields := map[string]any{
		"Description": result.Report,
	}
	if result.Verification != nil {
		fields["Research_Confidence__c"] = result.Verification.OverallConfidence
	} else if result.Profile != nil {
		fields["Research_Confidence__c"] = result.Profile.OverallConfidence
	}
	if err := sfpkg.UpdateContact(ctx, client, result.Subject.SalesforceID, fields); err != nil {
		return err
	}

	desc := fmt.Sprintf("Automated prospect research run %s: %d steps completed, %d failed, %d skipped.",
		result.RunID, len(result.CompletedSteps), len(result.FailedSteps), len(result.SkippedSteps))
	_, err := sfpkg.LogResearchTask(ctx, client, result.Subject.SalesforceID, "Prospect research completed", desc)
	return err
}
