package reminder

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/airalabs/interview-core/internal/models"
)

// templateData is the rendering context for reminder templates.
type templateData struct {
	CandidateName  string
	Position       string
	ScheduledStart string
	JoinURL        string
}

// bucketTemplate holds the raw subject/body template text for one bucket.
type bucketTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// templateFile is the YAML shape of a reminder template override file.
type templateFile struct {
	TwoDays   bucketTemplate `yaml:"two_days"`
	OneDay    bucketTemplate `yaml:"one_day"`
	ThirtyMin bucketTemplate `yaml:"thirty_min"`
}

var defaultTemplates = map[models.ReminderBucket]bucketTemplate{
	models.ReminderBucket2Days: {
		Subject: "Your {{.Position}} interview is in two days",
		Body: "Hi {{.CandidateName}},\n\n" +
			"This is a reminder that your interview for the {{.Position}} position " +
			"is scheduled for {{.ScheduledStart}}.\n\n" +
			"Your join link: {{.JoinURL}}\n\n" +
			"The link opens shortly before your scheduled time.\n",
	},
	models.ReminderBucket1Day: {
		Subject: "Your {{.Position}} interview is tomorrow",
		Body: "Hi {{.CandidateName}},\n\n" +
			"Your interview for the {{.Position}} position is tomorrow, " +
			"at {{.ScheduledStart}}.\n\n" +
			"Your join link: {{.JoinURL}}\n",
	},
	models.ReminderBucket30Min: {
		Subject: "Your {{.Position}} interview starts in 30 minutes",
		Body: "Hi {{.CandidateName}},\n\n" +
			"Your interview for the {{.Position}} position starts at " +
			"{{.ScheduledStart}}. The join link is now open:\n\n{{.JoinURL}}\n",
	},
}

// Templates renders reminder emails per bucket.
type Templates struct {
	subjects map[models.ReminderBucket]*template.Template
	bodies   map[models.ReminderBucket]*template.Template
}

// LoadTemplates builds the reminder templates, overlaying an optional YAML
// file on the built-in defaults. An empty path loads the defaults.
func LoadTemplates(path string) (*Templates, error) {
	raw := map[models.ReminderBucket]bucketTemplate{}
	for bucket, tmpl := range defaultTemplates {
		raw[bucket] = tmpl
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template file: %w", err)
		}
		var file templateFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing template file: %w", err)
		}
		overlay(raw, models.ReminderBucket2Days, file.TwoDays)
		overlay(raw, models.ReminderBucket1Day, file.OneDay)
		overlay(raw, models.ReminderBucket30Min, file.ThirtyMin)
	}

	t := &Templates{
		subjects: make(map[models.ReminderBucket]*template.Template),
		bodies:   make(map[models.ReminderBucket]*template.Template),
	}
	for bucket, bt := range raw {
		subject, err := template.New(string(bucket) + "_subject").Parse(bt.Subject)
		if err != nil {
			return nil, fmt.Errorf("parsing %s subject template: %w", bucket, err)
		}
		body, err := template.New(string(bucket) + "_body").Parse(bt.Body)
		if err != nil {
			return nil, fmt.Errorf("parsing %s body template: %w", bucket, err)
		}
		t.subjects[bucket] = subject
		t.bodies[bucket] = body
	}
	return t, nil
}

func overlay(raw map[models.ReminderBucket]bucketTemplate, bucket models.ReminderBucket, override bucketTemplate) {
	current := raw[bucket]
	if override.Subject != "" {
		current.Subject = override.Subject
	}
	if override.Body != "" {
		current.Body = override.Body
	}
	raw[bucket] = current
}

// Render produces the subject and body for a session's reminder.
func (t *Templates) Render(bucket models.ReminderBucket, sess *models.Session, joinURL string) (subject, body string, err error) {
	data := templateData{
		CandidateName:  sess.CandidateName,
		Position:       sess.Position,
		ScheduledStart: sess.ScheduledStartTime.UTC().Format("Monday, 2 January 2006 at 15:04 MST"),
		JoinURL:        joinURL,
	}

	var subjBuf, bodyBuf bytes.Buffer
	if err := t.subjects[bucket].Execute(&subjBuf, data); err != nil {
		return "", "", fmt.Errorf("rendering subject: %w", err)
	}
	if err := t.bodies[bucket].Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("rendering body: %w", err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}
