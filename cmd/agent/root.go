package agent

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "web-service-reader",
	Short: "Polls external web services for every catalog asset and writes the values back",
	Long: `web-service-reader enumerates the assets of a catalog template, runs a
collector (github, system) for each of them on a schedule and hands the
values to the write-back stage.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		return runService(cmd.Context(), cfg)
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "-> Config file path, optional (配置文件路径)")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initEngineFlags(rootCmd)
	initCollectorFlags(rootCmd)
	initWriterFlags(rootCmd)
	initLogFlags(rootCmd)

	rootCmd.AddCommand(onceCmd, catalogCmd)
}
