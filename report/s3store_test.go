package report

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory, one key per page.
type fakeS3 struct {
	objects map[string]string
	puts    map[string]string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	seen := map[string]bool{}
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" {
			if i := strings.Index(k[len(prefix):], delim); i >= 0 {
				k = k[:len(prefix)+i+1]
				if seen[k] {
					continue
				}
				seen[k] = true
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start = sort.SearchStrings(keys, tok)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start >= len(keys) {
		return out, nil
	}
	k := keys[start]
	if strings.HasSuffix(k, delim) && delim != "" {
		out.CommonPrefixes = []types.CommonPrefix{{Prefix: aws.String(k)}}
	} else {
		out.Contents = []types.Object{{Key: aws.String(k)}}
	}
	if start+1 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+1])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func newFakeStore() (*S3Store, *fakeS3) {
	f := &fakeS3{
		objects: map[string]string{
			"20200729_094952/Cingulata/cingulata_cardio.csv": phaseCSV,
			"20200830_125813/SEALion/sealion_nn.csv":         phaseCSV,
			"20200830_125813/nGraph-HE-MLP/ngraph_nn.csv":    phaseCSV,
			"20200830_125813/plot/plot_nn.pdf":               "pdf",
			"README":                                         "readme",
		},
		puts: map[string]string{},
	}
	return &S3Store{Client: f, Bucket: "bucket"}, f
}

func TestS3StoreListing(t *testing.T) {
	s, _ := newFakeStore()
	ctx := context.Background()

	folders, err := s.ListFolders(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"20200729_094952/", "20200830_125813/"}, folders)

	folders, err = s.ListFolders(ctx, "20200830_125813/")
	require.NoError(t, err)
	require.Equal(t, []string{"20200830_125813/SEALion/", "20200830_125813/nGraph-HE-MLP/", "20200830_125813/plot/"}, folders)

	files, err := s.ListFiles(ctx, "20200830_125813/SEALion/")
	require.NoError(t, err)
	require.Equal(t, []string{"20200830_125813/SEALion/sealion_nn.csv"}, files)

	root, err := MostRecentFolder(ctx, s)
	require.NoError(t, err)
	require.Equal(t, "20200830_125813/", root)
}

func TestS3StoreLabelsData(t *testing.T) {
	s, _ := newFakeStore()
	d, err := GetLabelsData(context.Background(), s, "nn", "", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SEALion", "nGraph-HE-MLP"}, d.Labels)

	_, err = s.Open(context.Background(), "missing.csv")
	require.Error(t, err)
}

func TestS3StoreUpload(t *testing.T) {
	s, f := newFakeStore()
	local := filepath.Join(t.TempDir(), "plot_nn.png")
	require.NoError(t, os.WriteFile(local, []byte("png"), 0o644))

	require.NoError(t, s.Upload(context.Background(), local, "20200830_125813/plot/plot_nn.png"))
	require.Equal(t, "png", f.puts["20200830_125813/plot/plot_nn.png"])

	require.Error(t, s.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "k"))
}
