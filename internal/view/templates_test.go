package view

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusWritesHeaderAndBody(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.RenderStatus(rec, http.StatusUnprocessableEntity, "pages/login.html", TemplateData{Title: "Sign in", CSRFToken: "tok"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `name="csrf_token" value="tok"`)
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestInputType(t *testing.T) {
	assert.Equal(t, "date", inputType("join_date"))
	assert.Equal(t, "email", inputType("email"))
	assert.Equal(t, "text", inputType("name"))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Phone No", humanize("phone_no"))
	assert.Equal(t, "Total Amount", humanize("total_amount"))
	assert.Equal(t, "Email", humanize("email"))
}

func TestHumanizeConcurrentRenders(t *testing.T) {
	tpl := template.Must(template.New("headings").
		Funcs(template.FuncMap{"humanize": humanize}).
		Parse(`{{range .}}{{humanize .}}|{{end}}`))
	columns := []string{"phone_no", "total_amount", "payment_method", "order_date"}
	want := "Phone No|Total Amount|Payment Method|Order Date|"

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				var b strings.Builder
				if err := tpl.Execute(&b, columns); err != nil {
					errs <- err.Error()
					return
				}
				if b.String() != want {
					errs <- b.String()
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent render produced %q", got)
	}
}
