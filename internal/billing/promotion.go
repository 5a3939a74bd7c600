package billing

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Outcome is the terminal state of a promotion evaluation.
type Outcome string

// Promotion outcomes.
const (
	OutcomePromote            Outcome = "promote"
	OutcomeRetain             Outcome = "retain"
	OutcomeGraduateOrTransfer Outcome = "graduate_or_transfer"
)

var (
	// ErrClassGroupNotFound indicates the student's class group is not configured.
	ErrClassGroupNotFound = errors.New("class group not found")
	// ErrNotPromotable indicates a decision that does not move the student to a new class group.
	ErrNotPromotable = errors.New("decision does not promote the student")
)

// PromotionDecision explains the outcome for one student.
type PromotionDecision struct {
	StudentID           uint    `json:"student_id"`
	Outcome             Outcome `json:"outcome"`
	Reason              string  `json:"reason"`
	ThresholdMet        bool    `json:"threshold_met"`
	HasNextClassGroup   bool    `json:"has_next_class_group"`
	JuniorOverride      bool    `json:"junior_override"`
	CompletionRate      float64 `json:"completion_rate"`
	RequiredRate        float64 `json:"required_rate"`
	CurrentClassGroupID uint    `json:"current_class_group_id"`
	NextClassGroupID    *uint   `json:"next_class_group_id,omitempty"`
}

// ClassGroupRank returns the grade position of a class group. The explicit
// GradeRank wins; otherwise the trailing integer of the name is used.
func ClassGroupRank(group models.ClassGroup) int {
	if group.GradeRank > 0 {
		return group.GradeRank
	}

	name := strings.TrimSpace(group.Name)
	end := len(name)
	start := end
	for start > 0 && unicode.IsDigit(rune(name[start-1])) {
		start--
	}
	if start == end {
		return 0
	}
	rank, err := strconv.Atoi(name[start:end])
	if err != nil {
		return 0
	}
	return rank
}

// NextClassGroup returns the enabled class group one rank above current, or nil.
func NextClassGroup(settings models.AppSettings, current models.ClassGroup) *models.ClassGroup {
	rank := ClassGroupRank(current)
	if rank <= 0 {
		return nil
	}
	for i := range settings.ClassGroups {
		candidate := settings.ClassGroups[i]
		if candidate.ID == current.ID || !candidate.Enabled {
			continue
		}
		if ClassGroupRank(candidate) == rank+1 {
			return &candidate
		}
	}
	return nil
}

// EvaluatePromotion applies the junior override, the payment threshold and the
// terminal grade check, in that order.
func EvaluatePromotion(student models.Student, totals Totals, settings models.AppSettings) (PromotionDecision, error) {
	settings = NormalizeSettings(settings)

	current := FindClassGroup(settings, student.ClassGroupID)
	if current == nil {
		return PromotionDecision{}, fmt.Errorf("student %d: class group %d: %w", student.ID, student.ClassGroupID, ErrClassGroupNotFound)
	}

	rate := roundScore(totals.CompletionRate)
	required := roundScore(settings.PromotionThreshold)
	next := NextClassGroup(settings, *current)
	graduating := settings.GraduationClassGroupID != nil && *settings.GraduationClassGroupID == current.ID

	decision := PromotionDecision{
		StudentID:           student.ID,
		CompletionRate:      rate,
		RequiredRate:        required,
		CurrentClassGroupID: current.ID,
		ThresholdMet:        rate >= required,
		HasNextClassGroup:   next != nil && !graduating,
		JuniorOverride:      settings.JuniorClassGroupID != nil && *settings.JuniorClassGroupID == current.ID,
	}
	if decision.HasNextClassGroup {
		id := next.ID
		decision.NextClassGroupID = &id
	}

	switch {
	case decision.JuniorOverride && decision.HasNextClassGroup:
		decision.Outcome = OutcomePromote
		decision.Reason = fmt.Sprintf("%s promotes automatically to %s", current.Name, next.Name)
	case !decision.ThresholdMet:
		decision.Outcome = OutcomeRetain
		decision.Reason = fmt.Sprintf("payment completion %.2f%% is below the required %.2f%%", rate, required)
	case !decision.HasNextClassGroup:
		decision.Outcome = OutcomeGraduateOrTransfer
		decision.Reason = fmt.Sprintf("%s is the final class group; payment completion %.2f%%", current.Name, rate)
	default:
		decision.Outcome = OutcomePromote
		decision.Reason = fmt.Sprintf("payment completion %.2f%% meets the required %.2f%%; promoted to %s", rate, required, next.Name)
	}

	return decision, nil
}

// ApplyPromotion returns a copy of the student moved to the next class group for
// the following academic year, with the new year's schedule appended and cached
// totals reset.
func ApplyPromotion(student models.Student, decision PromotionDecision, settings models.AppSettings, now time.Time) (models.Student, error) {
	if decision.Outcome != OutcomePromote || decision.NextClassGroupID == nil {
		return models.Student{}, ErrNotPromotable
	}

	next := FindClassGroup(settings, *decision.NextClassGroupID)
	if next == nil {
		return models.Student{}, fmt.Errorf("student %d: class group %d: %w", student.ID, *decision.NextClassGroupID, ErrClassGroupNotFound)
	}

	cal := NewCalendar(settings)
	year := student.AcademicYear
	if year == 0 {
		year = cal.AcademicYearOf(now)
	}

	promoted := student
	promoted.ClassGroupID = next.ID
	promoted.AcademicYear = year + 1
	promoted.TransportWaivers = nil
	promoted.TotalPaid = 0
	promoted.TotalOwed = 0

	schedule := GenerateSchedule(promoted, next, settings)
	promoted.FeePayments, promoted.TransportPayments = MergeSchedule(student.FeePayments, student.TransportPayments, schedule)

	return promoted, nil
}

// NewTransfer builds the off-roll record for a student leaving after the final grade.
func NewTransfer(student models.Student, decision PromotionDecision, totals Totals, settings models.AppSettings, now time.Time) models.TransferredStudent {
	settings = NormalizeSettings(settings)
	return models.TransferredStudent{
		StudentID:         student.ID,
		Name:              student.Name,
		FinalClassGroupID: student.ClassGroupID,
		Reason:            decision.Reason,
		TotalPaid:         totals.TotalPaid,
		TotalOwed:         totals.TotalOwed,
		TransferredAt:     now,
		RetainUntil:       now.AddDate(settings.TransferRetentionYears, 0, 0),
	}
}

// PromotionFailure itemises a student that was not promoted or graduated.
type PromotionFailure struct {
	StudentID uint   `json:"student_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Retained  bool   `json:"retained"`
}

// PromotionBatch is the outcome of a bulk promotion evaluation.
type PromotionBatch struct {
	Decisions    []PromotionDecision         `json:"decisions"`
	Promoted     []models.Student            `json:"-"`
	Transfers    []models.TransferredStudent `json:"-"`
	Failures     []PromotionFailure          `json:"failures"`
	SuccessCount int                         `json:"success_count"`
	FailureCount int                         `json:"failure_count"`
}

type promotionResult struct {
	decision *PromotionDecision
	promoted *models.Student
	transfer *models.TransferredStudent
	failure  *PromotionFailure
}

// EvaluateBatch evaluates every student independently, at most limit at a time.
// A failing student is itemised and never aborts the batch; students not yet
// started when ctx is cancelled are reported as failures.
func EvaluateBatch(ctx context.Context, students []models.Student, settings models.AppSettings, now time.Time, limit int) PromotionBatch {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]promotionResult, len(students))
	var group errgroup.Group
	group.SetLimit(limit)
	for i := range students {
		group.Go(func() error {
			results[i] = evaluateStudent(ctx, students[i], settings, now)
			return nil
		})
	}
	_ = group.Wait()

	batch := PromotionBatch{
		Decisions: make([]PromotionDecision, 0, len(students)),
		Failures:  make([]PromotionFailure, 0),
	}
	for _, result := range results {
		if result.decision != nil {
			batch.Decisions = append(batch.Decisions, *result.decision)
		}
		switch {
		case result.failure != nil:
			batch.Failures = append(batch.Failures, *result.failure)
			batch.FailureCount++
		case result.promoted != nil:
			batch.Promoted = append(batch.Promoted, *result.promoted)
			batch.SuccessCount++
		case result.transfer != nil:
			batch.Transfers = append(batch.Transfers, *result.transfer)
			batch.SuccessCount++
		}
	}

	return batch
}

func evaluateStudent(ctx context.Context, student models.Student, settings models.AppSettings, now time.Time) promotionResult {
	fail := func(reason string, retained bool) *PromotionFailure {
		return &PromotionFailure{StudentID: student.ID, Name: student.Name, Reason: reason, Retained: retained}
	}

	if err := ctx.Err(); err != nil {
		return promotionResult{failure: fail("promotion run cancelled", false)}
	}

	totals := Aggregate(student, settings, now)
	decision, err := EvaluatePromotion(student, totals, settings)
	if err != nil {
		return promotionResult{failure: fail(err.Error(), false)}
	}

	result := promotionResult{decision: &decision}
	switch decision.Outcome {
	case OutcomePromote:
		promoted, err := ApplyPromotion(student, decision, settings, now)
		if err != nil {
			result.failure = fail(err.Error(), false)
			return result
		}
		result.promoted = &promoted
	case OutcomeGraduateOrTransfer:
		transfer := NewTransfer(student, decision, totals, settings, now)
		result.transfer = &transfer
	default:
		result.failure = fail(decision.Reason, true)
	}

	return result
}
