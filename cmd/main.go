// 程序入口：地名 → 目录区域 → 本地 shapefile 目录；输出解压目录路径，供渲染端读取
package main

import (
	"context"
	"errors"
	"fmt"
	"mapoc/internal/catalog"
	"mapoc/internal/config"
	"mapoc/internal/fetcher"
	"mapoc/internal/httpclient"
	"mapoc/internal/locate"
	"mapoc/internal/logger"
	"mapoc/internal/resolver"
	"mapoc/internal/utils"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var flags struct {
	country     string
	interactive bool
	scoped      bool
	cacheDir    string
	showRegion  bool
}

var rootCmd = &cobra.Command{
	Use:   "mapoc CITY",
	Short: "Find the catalog region of a city and fetch its shapefile bundle",
	Long: `Resolve a city name against the gazetteer, pick the catalog region that
contains it (or the region with the nearest centroid), download the region's
latest free shapefile bundle once and print the extraction directory.

Examples:
  mapoc Paris --country France
  mapoc Springfield --interactive
  mapoc "Sao Paulo" --country Brazil --scoped`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLocate,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.country, "country", "c", "", "country name used to filter cities and scope the region search")
	f.BoolVarP(&flags.interactive, "interactive", "i", false, "prompt when a name or region is ambiguous")
	f.BoolVar(&flags.scoped, "scoped", false, "pick the deepest region of the country that contains the city")
	f.StringVar(&flags.cacheDir, "cache-dir", "", "shapefile cache directory (default $SHP_CACHE_DIR or <data root>/shp)")
	f.BoolVar(&flags.showRegion, "show-region", false, "print the region name and download url before the directory")
}

func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	l.Debug("log_init_ok")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mapoc:", explain(err))
		os.Exit(1)
	}
}

func runLocate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	l := logger.L()

	cfg := config.Load()
	if flags.cacheDir != "" {
		cfg.ShpCacheDir = flags.cacheDir
	}
	cat, err := catalog.Load(ctx, cfg)
	if err != nil {
		return err
	}

	client := httpclient.New(cfg.HTTPTimeout, cfg.HTTPRetries)
	client.SetRate(cfg.HTTPRate)
	var chooser resolver.Chooser
	if flags.interactive {
		chooser = &resolver.TerminalChooser{In: os.Stdin, Out: cmd.ErrOrStderr()}
	}
	rc := utils.PingOrDisable(ctx, utils.OpenRedisFromEnv())
	if rc == nil {
		l.Debug("redis_disabled")
	} else {
		defer rc.Close()
	}
	loc := locate.New(cat, fetcher.New(cfg.ShpCacheDir, client), chooser, rc, cfg.LocateCacheTTL)

	ans, err := loc.Locate(ctx, locate.Request{
		City:        strings.Join(args, " "),
		Country:     flags.country,
		Interactive: flags.interactive,
		Scoped:      flags.scoped,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flags.showRegion {
		fmt.Fprintf(out, "region\t%s\nurl\t%s\n", ans.Region, ans.DownloadURL)
	}
	fmt.Fprintln(out, ans.Dir)
	return nil
}

// explain：把已知错误转换为可操作的提示
func explain(err error) string {
	var (
		nd *fetcher.NoDownloadError
		se *httpclient.StatusError
	)
	switch {
	case errors.Is(err, catalog.ErrMissingData):
		return err.Error()
	case errors.Is(err, resolver.ErrNoMatch):
		return err.Error() + "; check the spelling or drop --country"
	case errors.Is(err, resolver.ErrUnknownCountry):
		return err.Error() + "; use the English country name from the country list"
	case errors.Is(err, locate.ErrNoRegion):
		return err.Error() + "; try without --scoped"
	case errors.As(err, &nd):
		return err.Error() + "; re-run region-crawl to refresh the url index"
	case errors.As(err, &se):
		return err.Error()
	case errors.Is(err, fetcher.ErrCacheCollision):
		return err.Error() + "; remove the directory from the cache and retry"
	default:
		return err.Error()
	}
}
