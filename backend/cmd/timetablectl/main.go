// timetablectl 离线课表工具：不启动 HTTP 服务，直接对 XLSX 文件做冲突检查、统计与导出。
//
//	timetablectl check emploi.xlsx
//	timetablectl stats emploi.xlsx --class 5A
//	timetablectl export emploi.xlsx --class 5A --format ics -o 5A.ics
//	timetablectl demo
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(os.Stderr, "错误:", err)
		}
		os.Exit(1)
	}
}
