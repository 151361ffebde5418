package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"jobs-etl/internal/record"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Placeholders used when the scraper left a field out.
const (
	unknownTitle       = "Unknown Title"
	unknownCompany     = "Unknown Company"
	unknownLocation    = "Unknown Location"
	unspecifiedSalary  = "Not Specified"
	missingDescription = "No description available"
)

// Builtin maps raw scraper items onto the columns of the jobs table without
// leaving the process.
type Builtin struct{}

// Normalize reads the raw items at inPath and writes normalized records to
// outPath.
func (Builtin) Normalize(ctx context.Context, inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read scraped items: %w", err)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("invalid scraped items in %s: %w", inPath, err)
	}
	logrus.Infof("loaded %d scraped jobs from %s", len(items), inPath)

	recs := make([]record.Record, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		recs = append(recs, Format(it))
	}

	if err := record.Save(outPath, recs); err != nil {
		return fmt.Errorf("failed to write formatted jobs: %w", err)
	}
	logrus.Infof("formatted %d jobs into %s", len(recs), outPath)
	return nil
}

// Format converts one raw listing into a record. The apply link wins over
// the listing URL since it is the stable identifier of the posting; when
// neither exists the URL stays empty and the uploader rejects the record.
func Format(it map[string]interface{}) record.Record {
	return record.Record{
		URL:   firstString(it, "", "externalApplyLink", "url"),
		Title: firstString(it, unknownTitle, "positionName"),
		Fields: map[string]interface{}{
			"company":     firstString(it, unknownCompany, "company"),
			"location":    firstString(it, unknownLocation, "location"),
			"salary":      firstString(it, unspecifiedSalary, "salary"),
			"description": description(it),
			"posted_date": firstString(it, "", "postingDateParsed"),
		},
	}
}

func description(it map[string]interface{}) string {
	if d := firstString(it, "", "description"); d != "" {
		return d
	}
	if html := firstString(it, "", "descriptionHTML"); html != "" {
		if text := htmlToText(html); text != "" {
			return text
		}
	}
	return missingDescription
}

// htmlToText flattens an HTML fragment, keeping block elements on separate
// lines.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// firstString returns the first non-empty value among keys, rendered as a
// string, or def.
func firstString(it map[string]interface{}, def string, keys ...string) string {
	for _, k := range keys {
		v, ok := it[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return def
}
