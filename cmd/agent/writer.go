package agent

import (
	"github.com/spf13/cobra"
)

func initWriterFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("writer.enable", defaultCfg.Writer.Enable, "-> Persist values to SQLite, otherwise log them (是否写入数据库)")
	f.String("writer.dsn", defaultCfg.Writer.DSN, "-> SQLite file of written values (写回数据库文件)")
}
