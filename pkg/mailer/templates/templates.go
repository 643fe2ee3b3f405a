// Package templates renders the transactional emails the platform
// sends: a welcome note after registration and a notice after a
// password rotation.
package templates

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	texttpl "text/template"
)

const (
	Welcome         = "welcome"
	PasswordChanged = "password_changed"
)

type def struct {
	subject string
	text    string
	html    string
}

var defs = map[string]def{
	Welcome: {
		subject: "Welcome to Kabantay",
		text: `Hi {{or .FirstName "there"}},

Your Kabantay account for {{.Email}} is ready. You can now sign in and
manage your household profile and address.

— The Kabantay team`,
		html: `<p>Hi {{or .FirstName "there"}},</p>
<p>Your Kabantay account for <strong>{{.Email}}</strong> is ready. You can now
sign in and manage your household profile and address.</p>
<p>— The Kabantay team</p>`,
	},
	PasswordChanged: {
		subject: "Your password was changed",
		text: `Hi,

The password for {{.Email}} was just changed. If this was not you,
contact support immediately.

— The Kabantay team`,
		html: `<p>Hi,</p>
<p>The password for <strong>{{.Email}}</strong> was just changed. If this was
not you, contact support immediately.</p>
<p>— The Kabantay team</p>`,
	},
}

// Render produces the subject, text and HTML bodies for a named
// template. Unknown names are an error so a bad job is rejected rather
// than sent empty.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	d, ok := defs[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}

	tt, err := texttpl.New(name).Parse(d.text)
	if err != nil {
		return "", "", "", err
	}
	var tb bytes.Buffer
	if err := tt.Execute(&tb, data); err != nil {
		return "", "", "", err
	}

	ht, err := htmpl.New(name).Parse(d.html)
	if err != nil {
		return "", "", "", err
	}
	var hb bytes.Buffer
	if err := ht.Execute(&hb, data); err != nil {
		return "", "", "", err
	}

	return d.subject, tb.String(), hb.String(), nil
}
