package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/slug"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// parseDate parses a YYYY-MM-DD value. An empty string is an open bound.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDateRange reads an inclusive range from two query parameters and
// returns the first error found.
func parseDateRange(q url.Values, fromKey, toKey string) (review.DateRange, string) {
	from, err := parseDate(q.Get(fromKey))
	if err != nil {
		return review.DateRange{}, fmt.Sprintf("%s must be a date (YYYY-MM-DD).", fromKey)
	}
	to, err := parseDate(q.Get(toKey))
	if err != nil {
		return review.DateRange{}, fmt.Sprintf("%s must be a date (YYYY-MM-DD).", toKey)
	}
	if from != nil && to != nil && to.Before(*from) {
		return review.DateRange{}, fmt.Sprintf("%s is before %s.", toKey, fromKey)
	}
	return review.DateRange{From: from, To: to}, ""
}

// parseLimit reads a dashboard panel size, clamped to the allowed maximum.
func parseLimit(s string) (int, string) {
	if s == "" {
		return review.DefaultPanelLimit, ""
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, "limit must be a positive integer."
	}
	return review.ClampLimit(n), ""
}

// validateVersionFields checks the descriptive review fields against their
// column limits.
func validateVersionFields(ref, compiledBy string) string {
	if utf8.RuneCountInString(ref) > models.MaxVersionRefLen {
		return fmt.Sprintf("current_version_ref is too long (max %d characters).", models.MaxVersionRefLen)
	}
	if utf8.RuneCountInString(compiledBy) > models.MaxVersionCompiledByLen {
		return fmt.Sprintf("current_version_compiled_by is too long (max %d characters).", models.MaxVersionCompiledByLen)
	}
	return ""
}

func validateCustomFrequency(f *int) string {
	if f == nil {
		return ""
	}
	if *f <= 0 {
		return "custom_review_frequency must be a positive number of months."
	}
	if *f > models.MaxCustomReviewFrequency {
		return fmt.Sprintf("custom_review_frequency must be at most %d months.", models.MaxCustomReviewFrequency)
	}
	return ""
}

// decodeReviewPatch turns a partial JSON object into a partial save. Only
// the keys present in the body are written; null clears a field.
func decodeReviewPatch(body io.Reader) (review.ReviewUpdate, string) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&raw); err != nil {
		return review.ReviewUpdate{}, "Request body must be a JSON object."
	}
	if len(raw) == 0 {
		return review.ReviewUpdate{}, "No review fields given."
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var u review.ReviewUpdate
	for _, key := range keys {
		val := raw[key]
		null := bytes.Equal(bytes.TrimSpace(val), []byte("null"))
		switch key {
		case models.FieldLastReviewDate:
			if !null {
				var s string
				if err := json.Unmarshal(val, &s); err != nil {
					return review.ReviewUpdate{}, "last_review_date must be a date (YYYY-MM-DD) or null."
				}
				d, err := parseDate(s)
				if err != nil {
					return review.ReviewUpdate{}, "last_review_date must be a date (YYYY-MM-DD) or null."
				}
				u.Values.LastReviewDate = d
			}
		case models.FieldCurrentVersionRef:
			if !null {
				if err := json.Unmarshal(val, &u.Values.CurrentVersionRef); err != nil {
					return review.ReviewUpdate{}, "current_version_ref must be a string."
				}
			}
		case models.FieldCurrentVersionCompiledBy:
			if !null {
				if err := json.Unmarshal(val, &u.Values.CurrentVersionCompiledBy); err != nil {
					return review.ReviewUpdate{}, "current_version_compiled_by must be a string."
				}
			}
		case models.FieldCustomReviewFrequency:
			if !null {
				var n int
				if err := json.Unmarshal(val, &n); err != nil {
					return review.ReviewUpdate{}, "custom_review_frequency must be an integer or null."
				}
				u.Values.CustomReviewFrequency = &n
			}
		case models.FieldNextReviewDate:
			// Passed through so the scheduler rejects the derived field.
		default:
			return review.ReviewUpdate{}, fmt.Sprintf("Unknown field %q.", key)
		}
		u.Fields = append(u.Fields, key)
	}

	if msg := validateVersionFields(u.Values.CurrentVersionRef, u.Values.CurrentVersionCompiledBy); msg != "" {
		return review.ReviewUpdate{}, msg
	}
	if msg := validateCustomFrequency(u.Values.CustomReviewFrequency); msg != "" {
		return review.ReviewUpdate{}, msg
	}
	return u, ""
}

// reviewBody is the full representation accepted by PUT.
type reviewBody struct {
	LastReviewDate           *string `json:"last_review_date"`
	CurrentVersionRef        string  `json:"current_version_ref"`
	CurrentVersionCompiledBy string  `json:"current_version_compiled_by"`
	CustomReviewFrequency    *int    `json:"custom_review_frequency"`
	NextReviewDate           *string `json:"next_review_date"`
}

// decodeReviewSave turns a full JSON representation into a full save.
func decodeReviewSave(body io.Reader) (review.ReviewUpdate, string) {
	var b reviewBody
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return review.ReviewUpdate{}, "Request body must be a JSON object with review fields only."
	}
	if b.NextReviewDate != nil {
		return review.ReviewUpdate{}, "next_review_date is computed and cannot be set."
	}

	f, msg := b.fields()
	if msg != "" {
		return review.ReviewUpdate{}, msg
	}
	return review.ReviewUpdate{Values: f}, ""
}

// fields validates the body and converts it to review metadata.
func (b reviewBody) fields() (models.ReviewFields, string) {
	if b.NextReviewDate != nil {
		return models.ReviewFields{}, "next_review_date is computed and cannot be set."
	}
	var last *time.Time
	if b.LastReviewDate != nil {
		d, err := parseDate(*b.LastReviewDate)
		if err != nil {
			return models.ReviewFields{}, "last_review_date must be a date (YYYY-MM-DD) or null."
		}
		last = d
	}
	if msg := validateVersionFields(b.CurrentVersionRef, b.CurrentVersionCompiledBy); msg != "" {
		return models.ReviewFields{}, msg
	}
	if msg := validateCustomFrequency(b.CustomReviewFrequency); msg != "" {
		return models.ReviewFields{}, msg
	}
	return models.ReviewFields{
		LastReviewDate:           last,
		CurrentVersionRef:        b.CurrentVersionRef,
		CurrentVersionCompiledBy: b.CurrentVersionCompiledBy,
		CustomReviewFrequency:    b.CustomReviewFrequency,
	}, ""
}

// pageBody is the JSON accepted when creating a page.
type pageBody struct {
	ParentID uuid.UUID   `json:"parent_id"`
	Title    string      `json:"title"`
	Slug     string      `json:"slug"`
	Kind     string      `json:"kind"`
	Live     *bool       `json:"live"`
	Review   *reviewBody `json:"review"`
}

// maxTitleLen caps page titles.
const maxTitleLen = 255

// decodePageCreate reads a new page. The slug defaults to one generated
// from the title and pages are live unless stated otherwise.
func decodePageCreate(body io.Reader) (uuid.UUID, models.Page, models.ReviewFields, string) {
	var b pageBody
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return uuid.Nil, models.Page{}, models.ReviewFields{}, "Request body must be a JSON object describing the page."
	}

	b.Title = strings.TrimSpace(b.Title)
	switch {
	case b.ParentID == uuid.Nil:
		return uuid.Nil, models.Page{}, models.ReviewFields{}, "parent_id is required."
	case b.Title == "":
		return uuid.Nil, models.Page{}, models.ReviewFields{}, "title is required."
	case utf8.RuneCountInString(b.Title) > maxTitleLen:
		return uuid.Nil, models.Page{}, models.ReviewFields{}, fmt.Sprintf("title is too long (max %d characters).", maxTitleLen)
	case !kindPattern.MatchString(b.Kind):
		return uuid.Nil, models.Page{}, models.ReviewFields{}, "kind must be a lowercase identifier."
	}

	p := models.Page{Title: b.Title, Slug: slug.Generate(b.Slug), Kind: b.Kind, Live: true}
	if p.Slug == "" {
		p.Slug = slug.Generate(b.Title)
	}
	if p.Slug == "" {
		p.Slug = "page"
	}
	if b.Live != nil {
		p.Live = *b.Live
	}

	var f models.ReviewFields
	if b.Review != nil {
		if _, ok := models.LookupBuiltinKind(b.Kind); !ok {
			return uuid.Nil, models.Page{}, models.ReviewFields{}, fmt.Sprintf("Pages of kind %q carry no review metadata.", b.Kind)
		}
		var msg string
		if f, msg = b.Review.fields(); msg != "" {
			return uuid.Nil, models.Page{}, models.ReviewFields{}, msg
		}
	}
	return b.ParentID, p, f, ""
}

var (
	kindPattern     = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)
	hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]{0,251}[a-z0-9])?(:[0-9]{1,5})?$`)
)

// siteBody is the JSON accepted when creating a site.
type siteBody struct {
	Hostname  string `json:"hostname"`
	SiteName  string `json:"site_name"`
	IsDefault bool   `json:"is_default"`
}

func decodeSiteCreate(body io.Reader) (siteBody, string) {
	var b siteBody
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return siteBody{}, "Request body must be a JSON object describing the site."
	}
	b.Hostname = strings.ToLower(strings.TrimSpace(b.Hostname))
	b.SiteName = strings.TrimSpace(b.SiteName)
	if !hostnamePattern.MatchString(b.Hostname) {
		return siteBody{}, "hostname must be a valid host name."
	}
	if b.SiteName == "" {
		b.SiteName = b.Hostname
	}
	if utf8.RuneCountInString(b.SiteName) > maxTitleLen {
		return siteBody{}, fmt.Sprintf("site_name is too long (max %d characters).", maxTitleLen)
	}
	return b, ""
}

// decodeFrequencies reads the rule set form: a map of kind name to months.
// Kind names and values are validated by the rule set service.
func decodeFrequencies(body io.Reader) (map[string]models.ReviewFrequency, string) {
	var b struct {
		Frequencies map[string]int `json:"frequencies"`
	}
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, `Request body must be {"frequencies": {"<kind>": <months>}}.`
	}
	changes := make(map[string]models.ReviewFrequency, len(b.Frequencies))
	for kind, months := range b.Frequencies {
		changes[kind] = models.ReviewFrequency(months)
	}
	return changes, ""
}
