package compliance

import (
	"reflect"
	"testing"
	"time"

	"github.com/vulnflow/vulnflow/pkg/model"
)

func fullPatch(findingID string) *model.Patch {
	return &model.Patch{
		ID:                  "p-1",
		FindingID:           findingID,
		Diff:                "- bad\n+ good",
		ImplementationSteps: []string{"apply diff", "redeploy service"},
		TestPlan:            "run regression suite",
	}
}

func TestValidate_AllStandardsChecked(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategorySQLInjection, Severity: 9.8}
	verdicts := Validate(finding, fullPatch("f-1"))

	if len(verdicts) != len(AllStandards()) {
		t.Fatalf("got %d verdicts, want %d", len(verdicts), len(AllStandards()))
	}
	for i, std := range AllStandards() {
		if verdicts[i].Standard != std {
			t.Errorf("verdict %d is for %s, want %s (canonical order)", i, verdicts[i].Standard, std)
		}
		if verdicts[i].Reason == "" {
			t.Errorf("verdict for %s has no reason", std)
		}
	}
}

func TestValidate_FullPatchPassesEverything(t *testing.T) {
	for _, category := range model.AllCategories() {
		finding := model.Finding{ID: "f-1", Category: category, Severity: 8.0}
		for _, v := range Validate(finding, fullPatch("f-1")) {
			if !v.Passed {
				t.Errorf("category %s, standard %s: failed with complete patch: %s", category, v.Standard, v.Reason)
			}
		}
	}
}

func TestValidate_NoPatch(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategorySQLInjection, Severity: 9.8}
	for _, v := range Validate(finding, nil) {
		if v.Passed {
			t.Errorf("standard %s should fail for an unfixed SQL injection", v.Standard)
		}
	}
}

func TestValidate_XSSWithoutPatch_GDPRStillPasses(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategoryXSS, Severity: 6.1}
	verdicts := Validate(finding, nil)

	for _, v := range verdicts {
		switch v.Standard {
		case GDPR:
			if !v.Passed {
				t.Error("XSS does not open a stored personal data path; GDPR should pass")
			}
		case OWASP, PCIDSS, SOC2, ISO27001:
			if v.Passed {
				t.Errorf("%s should fail for unfixed XSS at severity 6.1", v.Standard)
			}
		}
	}
}

func TestValidate_LowSeverityPCIDSS(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategoryXSS, Severity: 3.1}
	verdicts := Validate(finding, nil)

	for _, v := range verdicts {
		if v.Standard == PCIDSS && !v.Passed {
			t.Error("PCI_DSS should tolerate unfixed findings below severity 4.0")
		}
	}
}

func TestValidate_SOC2RequiresTestEvidence(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategoryMissingAuth, Severity: 8.2}
	patch := fullPatch("f-1")
	patch.TestPlan = ""

	for _, v := range Validate(finding, patch) {
		if v.Standard == SOC2 && v.Passed {
			t.Error("SOC2 should fail when the patch carries no test plan")
		}
	}
}

func TestValidate_ISO27001RequiresSteps(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategoryMissingAuth, Severity: 8.2}
	patch := fullPatch("f-1")
	patch.ImplementationSteps = nil

	for _, v := range Validate(finding, patch) {
		if v.Standard == ISO27001 && v.Passed {
			t.Error("ISO27001 should fail when the patch has no implementation steps")
		}
	}
}

// Calling validate twice with identical inputs must yield identical
// verdicts; deployment state between calls is irrelevant.
func TestValidate_Idempotent(t *testing.T) {
	finding := model.Finding{ID: "f-1", Category: model.CategoryPathTraversal, Severity: 7.5}
	patch := fullPatch("f-1")

	first := Validate(finding, patch)
	second := Validate(finding, patch)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("validate is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAggregate(t *testing.T) {
	f1 := model.Finding{ID: "f-1", Category: model.CategorySQLInjection, Severity: 9.8}
	f2 := model.Finding{ID: "f-2", Category: model.CategoryXSS, Severity: 6.1}

	summary := Aggregate(
		Validate(f1, fullPatch("f-1")), // 5 passes
		Validate(f2, nil),              // only GDPR passes
	)

	if summary.Checked != 10 {
		t.Errorf("Checked = %d, want 10", summary.Checked)
	}
	if summary.Passed != 6 {
		t.Errorf("Passed = %d, want 6", summary.Passed)
	}
	if summary.Percentage != 0.6 {
		t.Errorf("Percentage = %v, want 0.6", summary.Percentage)
	}
	if summary.ByStandard["GDPR"] != 2 {
		t.Errorf("ByStandard[GDPR] = %d, want 2", summary.ByStandard["GDPR"])
	}
	if summary.NextAuditAt == nil {
		t.Error("NextAuditAt should be scheduled")
	}
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate()
	if summary.Percentage != 0 {
		t.Errorf("empty aggregation should have zero percentage, got %v", summary.Percentage)
	}
}

func TestNextAuditDate(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := NextAuditDate(from); !got.Equal(want) {
		t.Errorf("NextAuditDate = %v, want %v (90 days later)", got, want)
	}
}
