package agent

import (
	"github.com/spf13/cobra"
)

func initCollectorFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "collector."

	f.String(p+"kind", defaultCfg.Collector.Kind, "-> Collector kind [github,system] | 采集器类型")
	f.String(p+"server_name", defaultCfg.Collector.ServerName, "-> Catalog server, the SQLite file path | 目录服务(SQLite文件)")
	f.String(p+"database_name", defaultCfg.Collector.DatabaseName, "-> Catalog database | 目录数据库")
	f.String(p+"template_name", defaultCfg.Collector.TemplateName, "-> Template the assets derive from | 资产模板")
	f.StringToString(p+"options", defaultCfg.Collector.Options, "-> Collector options key=value | 采集器参数")
}
