package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/cuotas/internal/period"
)

const (
	dateOnlyLayout = "2006-01-02"
	headerActor    = "X-Actor"
)

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return nil, newValidationError("id", "invalid_snowflake_id", "invalid id")
	}
	return &parsed, nil
}

// parseIDParam reads the :id path parameter.
func parseIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return *id, nil
}

// parseIDList accepts repeated and comma separated ids.
func parseIDList(field string, values []string) ([]snowflake.ID, error) {
	var out []snowflake.ID
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			id, err := parseOptionalSnowflakeID(part)
			if err != nil {
				return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
			}
			if id != nil {
				out = append(out, *id)
			}
		}
	}
	return out, nil
}

func parsePeriod(field, value string) (period.Period, error) {
	p, err := period.Parse(strings.TrimSpace(value))
	if err != nil {
		return period.Period{}, newValidationError(field, "invalid_period", "period must be YYYY-MM")
	}
	return p, nil
}

func parseOptionalPeriod(field, value string) (*period.Period, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	p, err := parsePeriod(field, value)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, newValidationError("time", "invalid_time", "invalid time")
}

// actorFromRequest names who is making the change. Services fall back to the
// configured default actor when empty.
func actorFromRequest(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(headerActor))
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
