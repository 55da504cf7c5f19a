package mail

import (
	"fmt"
	"html/template"
	"strings"
)

var rejectionTmpl = template.Must(template.New("rejection").Parse(`<html>
<body>
    <h2>Dear candidate,</h2>
    <p>Unfortunately your application for the <b>{{.Role}}</b> position does not currently meet our requirements.</p>
    <h3>Evaluation:</h3>
    <p>{{.Feedback}}</p>
    <h3>Suggestions for improvement:</h3>
    <ul>
    {{- range .Suggestions}}
        <li>{{.}}</li>
    {{- end}}
    </ul>
    <br>
    <p>Kind regards,</p>
    <p>HR Team</p>
</body>
</html>`))

var selectionTmpl = template.Must(template.New("selection").Parse(`<html>
<body>
    <h2>Dear candidate,</h2>
    <p>Congratulations! You have passed the initial screening for the <b>{{.Role}}</b> position.</p>
    <p>Details about your technical interview will follow shortly.</p>
    <br>
    <p>Kind regards,</p>
    <p>HR Team</p>
</body>
</html>`))

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
<body>
    <h2>Dear candidate,</h2>
    <p>Your interview for the <b>{{.Role}}</b> position has been scheduled.</p>
    <p><strong>Date:</strong> {{.Date}}</p>
    <p><strong>Time:</strong> {{.Time}}</p>
    <p><strong>Meeting link:</strong> <a href="{{.JoinURL}}">{{.JoinURL}}</a></p>
    <p>Please join the meeting 5 minutes early.</p>
    <br>
    <p>Kind regards,</p>
    <p>HR Team</p>
</body>
</html>`))

func renderRejection(role, feedback string, suggestions []string) (string, error) {
	return render(rejectionTmpl, map[string]any{
		"Role":        role,
		"Feedback":    feedback,
		"Suggestions": suggestions,
	})
}

func renderSelection(role string) (string, error) {
	return render(selectionTmpl, map[string]any{"Role": role})
}

func renderConfirmation(role string, details ConfirmationDetails) (string, error) {
	return render(confirmationTmpl, map[string]any{
		"Role":    role,
		"Date":    details.Date,
		"Time":    details.Time,
		"JoinURL": details.JoinURL,
	})
}

func render(tmpl *template.Template, data map[string]any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s template: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
