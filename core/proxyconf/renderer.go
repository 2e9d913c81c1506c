package proxyconf

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// TemplateData is the substitution context for the vhost template.
type TemplateData struct {
	// Domain is the server_name of the vhost.
	Domain string

	// Certificate artifact paths, absolute.
	FullchainPath  string
	PrivateKeyPath string
	ChainPath      string

	// ChallengeAddr is the host:port of the internal HTTP-01 responder.
	ChallengeAddr string

	// UpstreamAddr is the host:port the vhost proxies application traffic to.
	UpstreamAddr string
}

// defaultTemplate is the built-in nginx vhost. The acme-challenge location
// is unconditional so issuance never contends with the proxy for port 80.
const defaultTemplate = `server {
    listen 80;
    server_name {{ .Domain }};

    location /.well-known/acme-challenge/ {
        proxy_pass http://{{ .ChallengeAddr }};
    }

    location / {
        return 301 https://$host$request_uri;
    }
}

server {
    listen 443 ssl;
    http2 on;
    server_name {{ .Domain }};

    ssl_certificate {{ .FullchainPath }};
    ssl_certificate_key {{ .PrivateKeyPath }};
    ssl_trusted_certificate {{ .ChainPath }};

    ssl_protocols TLSv1.2 TLSv1.3;
    ssl_stapling on;
    ssl_stapling_verify on;

    location /.well-known/acme-challenge/ {
        proxy_pass http://{{ .ChallengeAddr }};
    }

    location / {
        proxy_pass http://{{ .UpstreamAddr }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`

// Renderer produces the concrete proxy configuration from a template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a renderer using the built-in vhost template.
func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("vhost").Option("missingkey=error").Parse(defaultTemplate)),
	}
}

// NewRendererFromFile creates a renderer from an operator-provided template
// file. A broken template is a startup error, not a cycle error.
func NewRendererFromFile(path string) (*Renderer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proxy template: %w", err)
	}

	tmpl, err := template.New("vhost").Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse proxy template: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render substitutes the data into the template and returns the rendered
// configuration. It performs no filesystem writes.
func (r *Renderer) Render(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render proxy configuration: %w", err)
	}
	return buf.Bytes(), nil
}
