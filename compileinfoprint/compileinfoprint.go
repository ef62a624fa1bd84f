// compileinfoprint is imported for the side effect of printing the compileinfo
// to os.StdErr before a command does any work.
package compileinfoprint

import "github.com/carbocation/niiconvert/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
