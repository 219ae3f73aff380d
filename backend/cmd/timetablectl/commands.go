package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"madrassa/backend/config"
	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/repository"
	"madrassa/backend/internal/service"
	"madrassa/backend/internal/timetable"
	applogger "madrassa/backend/pkg/logger"
)

// errCheckFailed check 发现冲突或被拒绝的行时返回，进程以退出码 1 结束
var errCheckFailed = errors.New("课表检查未通过")

type rootOptions struct {
	catalogFile string
	policy      string
	normalize   bool
	verbose     bool
}

// workspace 一次命令执行所需的内存课表与服务
type workspace struct {
	catalog   *timetable.Catalog
	timetable service.TimetableService
	importer  service.ImportService
	exporter  service.ExportService
	rejected  []dto.ImportRowError // 解析失败或被占用策略拒绝的行
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "timetablectl",
		Short:         "离线课表工具",
		Long:          "对 XLSX 课表做冲突检查、班级统计与导出，规则与服务端一致。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "目录 YAML 文件，为空时使用内置目录")
	root.PersistentFlags().StringVar(&opts.policy, "policy", "reject", "格子占用策略 reject|replace|allow")
	root.PersistentFlags().BoolVar(&opts.normalize, "normalize", true, "比较教师/教室前去空白并忽略大小写")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newCheckCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newDemoCmd(opts),
	)
	return root
}

// ── check ──

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.xlsx>",
		Short: "导入课表并列出冲突，存在冲突或被拒绝的行时退出码为 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.load(args[0], false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			conflicts := ws.timetable.Conflicts()
			fmt.Fprintf(out, "课程数: %d\n", ws.timetable.Len())
			printRejected(out, ws.rejected)
			printConflicts(out, ws.catalog, conflicts)
			if len(conflicts) > 0 || len(ws.rejected) > 0 {
				return errCheckFailed
			}
			return nil
		},
	}
}

// ── stats ──

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "stats <file.xlsx>",
		Short: "输出班级统计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.load(args[0], false)
			if err != nil {
				return err
			}
			printRejected(cmd.ErrOrStderr(), ws.rejected)
			return printStats(cmd.OutOrStdout(), ws, class)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "班级，如 5A")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

// ── export ──

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		class  string
		format string
		output string
		week   string
	)
	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "将班级课表导出为 XLSX 或 ICS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var weekStart time.Time
			if week != "" {
				t, err := time.Parse("2006-01-02", week)
				if err != nil {
					return fmt.Errorf("--week 格式应为 YYYY-MM-DD: %w", err)
				}
				weekStart = t
			}

			ws, err := opts.load(args[0], false)
			if err != nil {
				return err
			}
			printRejected(cmd.ErrOrStderr(), ws.rejected)
			file, err := ws.exporter.Export(class, format, weekStart)
			if err != nil {
				return err
			}

			if output == "" {
				output = file.Filename
			}
			if err := os.WriteFile(output, file.Content.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入导出文件失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已导出 %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "班级，如 5A")
	cmd.Flags().StringVar(&format, "format", service.FormatXLSX, "导出格式 xlsx|ics")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件，为空时使用默认文件名")
	cmd.Flags().StringVar(&week, "week", "", "ICS 首周日期 YYYY-MM-DD，为空时取本周")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

// ── demo ──

func newDemoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "输出演示数据的统计与冲突",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.load("", true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, class := range ws.catalog.Classes {
				if len(timetable.FilterByClass(ws.timetable.ListSlots(), class)) == 0 {
					continue
				}
				if err := printStats(out, ws, class); err != nil {
					return err
				}
			}
			printConflicts(out, ws.catalog, ws.timetable.Conflicts())
			return nil
		},
	}
}

// load 构建内存课表；path 非空时导入该 XLSX，demo=true 时写入演示数据
func (o *rootOptions) load(path string, demo bool) (*workspace, error) {
	logger := zap.NewNop()
	if o.verbose {
		l, err := applogger.NewLogger(&config.LogConfig{Level: "debug", Format: "console"})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	catalog, err := timetable.LoadCatalogFile(o.catalogFile)
	if err != nil {
		return nil, err
	}

	tt, err := service.NewTimetableService(&config.TimetableConfig{
		Persistence:       "memory",
		OccupancyPolicy:   o.policy,
		NormalizeIdentity: o.normalize,
		SeedDemo:          demo,
	}, catalog, repository.NewMemoryRepository(), logger.Named("timetable"))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := tt.Init(ctx); err != nil {
		return nil, err
	}

	ws := &workspace{
		catalog:   catalog,
		timetable: tt,
		importer:  service.NewImportService(catalog, logger.Named("import")),
		exporter:  service.NewExportService(tt, logger.Named("export")),
	}

	if path == "" {
		return ws, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开课表文件失败: %w", err)
	}
	defer f.Close()

	batch, err := ws.importer.Parse(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	resp, err := tt.ImportSlots(ctx, batch, true)
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Rejected {
		logger.Debug("行被拒绝", zap.Int("row", r.Row), zap.String("reason", r.Reason))
	}
	ws.rejected = resp.Rejected
	return ws, nil
}

func printStats(out io.Writer, ws *workspace, class string) error {
	view, err := ws.timetable.View(class)
	if err != nil {
		return fmt.Errorf("%w: %s", err, class)
	}
	st := view.Stats
	fmt.Fprintf(out, "%s\t课时 %d\t科目 %d\t教师 %d\n", class, st.TotalHours, st.UniqueSubjects, st.UniqueTeachers)
	return nil
}

func printRejected(out io.Writer, rejected []dto.ImportRowError) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintf(out, "被拒绝的行 %d 条:\n", len(rejected))
	for _, r := range rejected {
		fmt.Fprintf(out, "  第 %d 行: %s\n", r.Row, r.Reason)
	}
}

func printConflicts(out io.Writer, catalog *timetable.Catalog, conflicts []timetable.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(out, "无冲突")
		return
	}
	fmt.Fprintf(out, "冲突 %d 处:\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(out, "  %s %s  %s\n", catalog.DayName(c.Day), c.Hour, c.Message)
	}
}
