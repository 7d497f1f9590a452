// 包 fetcher：区域数据包（shapefile zip）的下载地址解析与本地解压缓存
// 背景：缓存以 URL 文件名（去掉最后一个扩展名）命名的子目录为键，目录存在即视为已完整解压，不再访问网络。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mapoc/internal/httpclient"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"mapoc/internal/regiontree"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// BundleSuffix：最新免费 shapefile 数据包的文件名后缀
const BundleSuffix = "latest-free.shp.zip"

// ErrCacheCollision：解压前目标目录已存在（并发或残留状态），不复用
var ErrCacheCollision = errors.New("extraction directory already exists")

// NoDownloadError：节点下没有符合后缀的下载地址
type NoDownloadError struct {
	Region string
}

func (e *NoDownloadError) Error() string {
	return fmt.Sprintf("couldn't find a %s link for %q", BundleSuffix, e.Region)
}

type Fetcher struct {
	root   string
	client *httpclient.Client
}

// New：root 为缓存根目录
func New(root string, client *httpclient.Client) *Fetcher {
	return &Fetcher{root: root, client: client}
}

// ResolveDownloadURL：节点链接中第一个以 BundleSuffix 结尾的地址；不存在时返回 *NoDownloadError，不做回退
func ResolveDownloadURL(urls regiontree.URLIndex, region string) (string, error) {
	u, ok := urls.FirstWithSuffix(region, BundleSuffix)
	if !ok {
		return "", &NoDownloadError{Region: region}
	}
	return u, nil
}

// ExtractDir：rawURL 对应的解压目录
func (f *Fetcher) ExtractDir(rawURL string) (string, error) {
	name, err := fileName(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, strings.TrimSuffix(name, filepath.Ext(name))), nil
}

// 文档注释：下载并解压（幂等）
// 背景：目录已存在直接返回；否则下载到缓存根目录，校验压缩包可打开后才创建目录并解压，最后删除压缩包。
// 约束：下载与解压之间任何失败都会删除已创建的目录，避免后续被误认为有效缓存。
// 异常：非 200 返回 *httpclient.StatusError；目录在创建前已存在返回 ErrCacheCollision。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	dir, err := f.ExtractDir(rawURL)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		metrics.FetchCacheHitsTotal.Inc()
		logger.Component("fetcher").Debug("fetch_cache_hit", "url", rawURL, "dir", dir)
		return dir, nil
	}
	metrics.FetchCacheMissesTotal.Inc()
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return "", err
	}
	name, _ := fileName(rawURL)
	archive := filepath.Join(f.root, name)
	logger.Component("fetcher").Info("fetch_download_begin", "url", rawURL, "path", archive)
	defer os.Remove(archive)
	if err := f.download(ctx, rawURL, archive); err != nil {
		return "", err
	}

	z := archiver.NewZip()
	if err := z.Walk(archive, func(archiver.File) error { return nil }); err != nil {
		return "", fmt.Errorf("open archive %s: %w", archive, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrCacheCollision, dir)
		}
		return "", err
	}
	logger.Component("fetcher").Info("fetch_extract", "dir", dir)
	if err := z.Unarchive(archive, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("extract %s: %w", archive, err)
	}
	return dir, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := f.client.Download(ctx, rawURL, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Component("fetcher").Debug("fetch_download_done", "url", rawURL, "bytes", n)
	return nil
}

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("no file name in url %q", rawURL)
	}
	return name, nil
}
