package service

import (
	"bytes"
	htmltemplate "html/template"
	"sort"
	"text/template"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

type changeMailData struct {
	Name    string
	Heading string
	Entry   models.ScheduleEntryDetail
	Day     string
}

type digestDay struct {
	Label   string
	Entries []models.ScheduleEntryDetail
}

type digestMailData struct {
	Name     string
	Semester string
	Days     []digestDay
	Total    int
}

var changeText = template.Must(template.New("change").Parse(`Hello {{.Name}},

{{.Heading}}

  Subject: {{.Entry.SubjectCode}} {{.Entry.SubjectName}}
  Section: {{.Entry.SectionName}}
  When:    {{.Day}} {{.Entry.StartTime}}-{{.Entry.EndTime}}
  Room:    {{.Entry.RoomCode}}
`))

var changeHTML = htmltemplate.Must(htmltemplate.New("change").Parse(`<p>Hello {{.Name}},</p>
<p>{{.Heading}}</p>
<table>
<tr><th align="left">Subject</th><td>{{.Entry.SubjectCode}} {{.Entry.SubjectName}}</td></tr>
<tr><th align="left">Section</th><td>{{.Entry.SectionName}}</td></tr>
<tr><th align="left">When</th><td>{{.Day}} {{.Entry.StartTime}}-{{.Entry.EndTime}}</td></tr>
<tr><th align="left">Room</th><td>{{.Entry.RoomCode}}</td></tr>
</table>`))

var digestText = template.Must(template.New("digest").Parse(`Hello {{.Name}},

Your timetable for {{.Semester}} has {{.Total}} class(es) this week.
{{range .Days}}
{{.Label}}
{{- range .Entries}}
  {{.StartTime}}-{{.EndTime}}  {{.SubjectCode}} {{.SectionName}}  {{.RoomCode}}
{{- end}}
{{end}}`))

var digestHTML = htmltemplate.Must(htmltemplate.New("digest").Parse(`<p>Hello {{.Name}},</p>
<p>Your timetable for {{.Semester}} has {{.Total}} class(es) this week.</p>
{{range .Days}}<h3>{{.Label}}</h3>
<table>{{range .Entries}}
<tr><td>{{.StartTime}}-{{.EndTime}}</td><td>{{.SubjectCode}} {{.SubjectName}}</td><td>{{.SectionName}}</td><td>{{.RoomCode}}</td></tr>{{end}}
</table>
{{end}}`))

var changeHeadings = map[models.NotificationKind]string{
	models.NotificationScheduleCreated:     "You have been assigned a new class.",
	models.NotificationScheduleUpdated:     "One of your classes has changed.",
	models.NotificationScheduleDeactivated: "One of your classes has been cancelled.",
	models.NotificationScheduleDeleted:     "One of your classes has been removed from your timetable.",
}

var changeSubjects = map[models.NotificationKind]string{
	models.NotificationScheduleCreated:     "New class assigned",
	models.NotificationScheduleUpdated:     "Class updated",
	models.NotificationScheduleDeactivated: "Class cancelled",
	models.NotificationScheduleDeleted:     "Class removed",
}

func renderChange(kind models.NotificationKind, entry models.ScheduleEntryDetail) (subject, text, html string, err error) {
	data := changeMailData{
		Name:    entry.FacultyName,
		Heading: changeHeadings[kind],
		Entry:   entry,
		Day:     entry.DayOfWeek.Label(),
	}
	subject = changeSubjects[kind] + ": " + entry.SubjectCode + " (" + data.Day + " " + entry.StartTime.String() + ")"
	text, html, err = render(changeText, changeHTML, data)
	return subject, text, html, err
}

func renderDigest(faculty models.Faculty, semester models.Semester, entries []models.ScheduleEntryDetail) (subject, text, html string, err error) {
	byDay := make(map[models.Weekday][]models.ScheduleEntryDetail)
	for _, e := range entries {
		byDay[e.DayOfWeek] = append(byDay[e.DayOfWeek], e)
	}
	data := digestMailData{Name: faculty.FullName, Semester: semester.Name, Total: len(entries)}
	for _, day := range models.Weekdays() {
		list := byDay[day]
		if len(list) == 0 {
			continue
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
		data.Days = append(data.Days, digestDay{Label: day.Label(), Entries: list})
	}
	subject = "Your weekly timetable: " + semester.Name
	text, html, err = render(digestText, digestHTML, data)
	return subject, text, html, err
}

func render(text *template.Template, html *htmltemplate.Template, data interface{}) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := html.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}
