package media

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/Lakunake/Sync-Player/internal/config"
)

// S3Provider lists the media library out of an S3-compatible bucket
// (B2 works too with a custom endpoint). Useful when the party host
// streams from object storage; probing and ffmpeg jobs are disabled in
// this mode since there is no local path.
type S3Provider struct {
	api    *s3.S3
	bucket string
}

func NewS3Provider(cfg *config.Config) *S3Provider {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
		Endpoint:         aws.String(cfg.Storage.Endpoint),
		Region:           aws.String(cfg.Storage.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	sess := session.Must(session.NewSession(s3Config))
	return &S3Provider{api: s3.New(sess), bucket: cfg.Storage.Bucket}
}

func (p *S3Provider) List() ([]FileInfo, error) {
	var out []FileInfo
	input := &s3.ListObjectsV2Input{Bucket: aws.String(p.bucket)}
	err := p.api.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			fi := FileInfo{Name: *item.Key}
			if item.Size != nil {
				fi.Size = *item.Size
			}
			if item.LastModified != nil {
				fi.ModTime = *item.LastModified
			}
			out = append(out, fi)
		}
		return true
	})
	return out, err
}

func (p *S3Provider) Size(name string) (int64, error) {
	head, err := p.api.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return 0, err
	}
	if head.ContentLength == nil {
		return 0, nil
	}
	return *head.ContentLength, nil
}

func (p *S3Provider) LocalPath(string) (string, bool) {
	return "", false
}

// FetchURL presigns a GetObject request so clients stream straight from
// the bucket instead of proxying bytes through this process.
func (p *S3Provider) FetchURL(name string) (string, bool) {
	req, _ := p.api.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(name),
	})
	url, err := req.Presign(15 * time.Minute)
	if err != nil {
		return "", false
	}
	return url, true
}
