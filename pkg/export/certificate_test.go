package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCertificateRendererRequiresFields(t *testing.T) {
	renderer := NewCertificateRenderer()

	_, err := renderer.Render(CertificateData{CourseTitle: "Go Basics"})
	require.Error(t, err)

	_, err = renderer.Render(CertificateData{StudentName: "Jane Doe"})
	require.Error(t, err)
}

func TestCertificateRendererProducesPDF(t *testing.T) {
	renderer := NewCertificateRenderer()

	data, err := renderer.Render(CertificateData{
		StudentName:    "Jane Doe",
		CourseTitle:    "Advanced Go",
		InstructorName: "John Smith",
		IssuedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, "%PDF", string(data[:4]))
}
