// Package toolparse 把语言模型生成的自由文本转换为 OpenAI 风格的 tool_calls。
//
// 不同模型族用不同的文本约定输出工具调用（标签包裹、控制 token 引出的数组、带可选哨兵的裸 JSON），
// 本仓库在同一个契约之后实现这些格式，支持两种模式：
//  1. 全量抽取：给定完整输出，一次性得到工具调用列表与前置文本
//  2. 流式抽取：随增量文本逐步输出已经稳定的名称与参数片段
//
// 包结构：
//   - toolparser：解析器契约、三种格式实现、流式状态与 Session
//   - partialjson：容错 JSON 解码与稳定前缀序列化
//   - tokenizer：特殊 token 词表
//   - backend：基于 Eino 的上游模型与工具调用包装
//   - openaihttp：/v1/models、/v1/chat/completions handlers
//
// 根包只提供解析器族名称、别名与归一化。
package toolparse
