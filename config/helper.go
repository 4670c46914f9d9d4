package config

// Load 把指定节绑定到 T，section 为空时绑定整个配置
// 节不存在时返回错误
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// LoadOrDefault 与 Load 相同，但节不存在时返回零值
func LoadOrDefault[T any](cfg Configuration, section string) (T, error) {
	var t T
	if section != "" && len(cfg.GetSection(section).GetAll()) == 0 {
		return t, nil
	}
	return Load[T](cfg, section)
}
