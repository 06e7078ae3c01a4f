package util

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colors = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"cyan":   ColorCyan,
}

// PrintBanner 打印统一颜色的 ASCII banner，未知颜色不着色
func PrintBanner(w io.Writer, text, color string) {
	ansi, ok := colors[color]
	for _, line := range figure.NewFigure(text, "", true).Slicify() {
		if ok {
			fmt.Fprintln(w, ansi+line+ColorReset)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}
