// Package verify re-checks profile claims against authoritative records and
// flags the ones the records contradict.
package verify

import (
	"fmt"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Field paths the extractor reads from the merged profile. Kept in one place
// so research steps and verification stay aligned on the record shape.
const (
	PathPoliticalTotal   = "giving.political_total"
	PathInsider          = "securities.insider"
	PathInsiderCompanies = "securities.insider_companies"
	PathBoardMemberships = "nonprofit.board_memberships"
	PathNetWorth         = "wealth.net_worth_estimate"
	PathPropertyValue    = "wealth.property_value"
)

// ExtractClaims pulls the independently-checkable assertions out of a merged
// profile. Absent, empty, and zero-valued fields yield no claim: a profile
// that reports nothing asserts nothing checkable.
func ExtractClaims(profile *model.MergedProfile) []model.Claim {
	var claims []model.Claim

	if total, ok := profile.FieldNumber(PathPoliticalTotal); ok && total > 0 {
		claims = append(claims, model.Claim{
			Type:          model.ClaimPoliticalGiving,
			Description:   fmt.Sprintf("political giving totals $%.0f", total),
			Value:         total,
			ExtractedFrom: PathPoliticalTotal,
		})
	}

	if fc, ok := profile.Fields[PathInsider]; ok {
		if insider, ok := fc.Value.(bool); ok && insider {
			claims = append(claims, model.Claim{
				Type:          model.ClaimInsiderStatus,
				Description:   insiderDescription(profile),
				Value:         true,
				ExtractedFrom: PathInsider,
			})
		}
	}

	for _, org := range profile.FieldStrings(PathBoardMemberships) {
		if org == "" {
			continue
		}
		claims = append(claims, model.Claim{
			Type:          model.ClaimBoardMembership,
			Description:   fmt.Sprintf("serves on the board of %s", org),
			Value:         org,
			ExtractedFrom: PathBoardMemberships,
		})
	}

	if worth, ok := profile.FieldNumber(PathNetWorth); ok && worth > 0 {
		claims = append(claims, model.Claim{
			Type:          model.ClaimNetWorth,
			Description:   fmt.Sprintf("estimated net worth $%.0f", worth),
			Value:         worth,
			ExtractedFrom: PathNetWorth,
		})
	}

	if value, ok := profile.FieldNumber(PathPropertyValue); ok && value > 0 {
		claims = append(claims, model.Claim{
			Type:          model.ClaimPropertyValue,
			Description:   fmt.Sprintf("primary residence valued around $%.0f", value),
			Value:         value,
			ExtractedFrom: PathPropertyValue,
		})
	}

	return claims
}

func insiderDescription(profile *model.MergedProfile) string {
	companies := profile.FieldStrings(PathInsiderCompanies)
	if len(companies) == 0 {
		return "is a reporting corporate insider"
	}
	return fmt.Sprintf("is a reporting insider at %s", companies[0])
}
