// Package cashier computes an incremental content fingerprint of a directory
// tree. Each directory keeps a small JSON record (.cash_file) holding the
// digest of its contents, the digest of its shape, and the latest child
// modification time, so a re-run only reads the files of directories that
// changed.
//
// # Core API
//
// The entry point is Engine, bound to one root directory:
//
//	engine, err := cashier.NewEngine("/path/to/tree", cashier.Options{})
//	if err != nil {
//		return err
//	}
//	result, err := engine.Hash(ctx)
//	fmt.Println(result.Fingerprint)
//
// Remove every record under the tree:
//
//	removed, err := engine.Clean(ctx)
//
// Export a nested tree document and compare two of them:
//
//	result, err := engine.Export(ctx)
//	err = cashier.WriteTreeFile("tree.json", result.Tree)
//	diffs := cashier.CompareTrees(first, second)
//	err = cashier.WriteDifferences(os.Stdout, diffs, false)
//
// # Configuration
//
// Options can be built from the optional INI file at <root>/.cashier/config:
//
//	cfg, err := cashier.LoadConfig(cashier.DefaultConfigPath(root))
//	opts, err := cashier.OptionsFromConfig(cfg)
//
// Diagnostics go through a zap logger; SetVerboseLevel and SetDebugFlags
// ("walk", "record") control how much is shown.
package cashier
