package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"pubmed-digest/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver legt rohe efetch-XML-Seiten in einem S3-Bucket ab. Das Archiv ist
// optional und rein für Audit/Debug; Ausfälle brechen die Pipeline nicht ab.
type Archiver struct {
	Client *s3.Client
	Bucket string
	URL    string
}

// NewArchiver erstellt einen S3-Client für das konfigurierte Archiv.
func NewArchiver(cfg *config.Config) (*Archiver, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return &Archiver{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.ArchiveS3Bucket,
		URL:    cfg.ArchiveS3URL,
	}, nil
}

// StorePage lädt eine rohe efetch-Seite ins Archiv hoch und gibt den Link
// zurück.
func (a *Archiver) StorePage(ctx context.Context, term string, page int, data []byte) (string, error) {
	key := fmt.Sprintf("%s/page-%04d.xml", sanitizeKey(term), page)
	contentType := "text/xml"
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", a.URL, a.Bucket, key), nil
}

// sanitizeKey macht einen Suchbegriff S3-Key-tauglich.
func sanitizeKey(term string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "?", "", "&", "-", "#", "")
	key := replacer.Replace(strings.ToLower(strings.TrimSpace(term)))
	if key == "" {
		key = "unnamed"
	}
	return key
}
