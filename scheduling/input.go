package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"teamsched/apperr"
	"teamsched/models"

	"github.com/go-playground/validator/v10"
)

const dateTimeLayout = "2006-01-02 15:04"

// FilingInput is the overtime form as submitted by the client.
type FilingInput struct {
	UserID    string `json:"user_id" validate:"omitempty,max=36"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Reason    string `json:"reason" validate:"required"`
}

type EditInput struct {
	FilingInput
	Version int `json:"version" validate:"min=0"`
}

type OneOffInput struct {
	UserID string `json:"user_id" validate:"omitempty,max=36"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=1000"`
}

type ScheduleInput struct {
	DaysOfWeek []int `json:"days_of_week" validate:"dive,min=0,max=6"`
}

// ParsedFiling is a validated overtime interval.
type ParsedFiling struct {
	Start  time.Time
	End    time.Time
	Reason string
}

// InputParser validates client input and resolves local dates and times in
// the configured location.
type InputParser struct {
	validate  *validator.Validate
	loc       *time.Location
	minReason int
}

func NewInputParser(loc *time.Location, minReason int) *InputParser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if loc == nil {
		loc = time.UTC
	}
	return &InputParser{validate: v, loc: loc, minReason: minReason}
}

func (p *InputParser) Location() *time.Location { return p.loc }

func (p *InputParser) ParseFiling(in FilingInput) (ParsedFiling, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := p.validate.Struct(in); err != nil {
		return ParsedFiling{}, p.fieldErrors(err)
	}
	if err := p.validate.Var(in.Reason, fmt.Sprintf("min=%d", p.minReason)); err != nil {
		return ParsedFiling{}, apperr.FieldError("reason",
			fmt.Sprintf("Reason must be at least %d characters.", p.minReason))
	}

	start, err := time.ParseInLocation(dateTimeLayout, in.StartDate+" "+in.StartTime, p.loc)
	if err != nil {
		return ParsedFiling{}, apperr.FieldError("start_time", "Invalid start date or time.")
	}
	end, err := time.ParseInLocation(dateTimeLayout, in.EndDate+" "+in.EndTime, p.loc)
	if err != nil {
		return ParsedFiling{}, apperr.FieldError("end_time", "Invalid end date or time.")
	}
	if !end.After(start) {
		return ParsedFiling{}, apperr.FieldError("end_time", msgEndBeforeStart)
	}
	return ParsedFiling{Start: start, End: end, Reason: in.Reason}, nil
}

func (p *InputParser) ParseEdit(in EditInput) (ParsedFiling, int, error) {
	if err := p.validate.Struct(in); err != nil {
		return ParsedFiling{}, 0, p.fieldErrors(err)
	}
	parsed, err := p.ParseFiling(in.FilingInput)
	return parsed, in.Version, err
}

// ParseOneOff returns the civil date and trimmed reason.
func (p *InputParser) ParseOneOff(in OneOffInput) (time.Time, string, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := p.validate.Struct(in); err != nil {
		return time.Time{}, "", p.fieldErrors(err)
	}
	date, err := p.ParseDate("date", in.Date)
	return date, in.Reason, err
}

func (p *InputParser) ParseSchedule(in ScheduleInput) (models.Weekdays, error) {
	if err := p.validate.Struct(in); err != nil {
		return nil, p.fieldErrors(err)
	}
	days := make(models.Weekdays, 0, len(in.DaysOfWeek))
	for _, d := range in.DaysOfWeek {
		days = append(days, int64(d))
	}
	return days.Normalized(), nil
}

// ParseDate parses a YYYY-MM-DD value into a civil date.
func (p *InputParser) ParseDate(field, value string) (time.Time, error) {
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.FieldError(field, "Use the YYYY-MM-DD format.")
	}
	return date, nil
}

func (p *InputParser) ParseMonth(field, value string, fallback time.Time) (models.Month, error) {
	if strings.TrimSpace(value) == "" {
		return models.MonthOf(fallback.In(p.loc)), nil
	}
	month, err := models.ParseMonth(strings.TrimSpace(value))
	if err != nil {
		return models.Month{}, apperr.FieldError(field, "Use the YYYY-MM format.")
	}
	return month, nil
}

func (p *InputParser) fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = fieldMessage(fe)
	}
	return &apperr.ValidationError{Message: "Please correct the highlighted fields.", Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "datetime":
		if fe.Param() == "15:04" {
			return "Use the HH:mm 24-hour format."
		}
		return "Use the YYYY-MM-DD format."
	case "min":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	}
	return fmt.Sprintf("Failed the %q check.", fe.Tag())
}
